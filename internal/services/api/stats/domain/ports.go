package domain

import "context"

// ServicePort is consumed by handlers and other modules
type ServicePort interface {
	Daily(ctx context.Context, in DailyInput) ([]DailyRow, error)
	Batches(ctx context.Context, limit int) ([]BatchRow, error)
}
