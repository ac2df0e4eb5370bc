// Package codec turns items into content addressed NDJSON batches and back.
// Encoding is deterministic: the same items and meta always give the same bytes
package codec

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"slices"
	"strings"

	"github.com/klauspost/compress/gzip"

	"tubesense/internal/core/record"
	perr "tubesense/internal/platform/errors"
	"tubesense/internal/services/stage/domain"
)

// checksumPrefix marks the gzip header comment carrying the payload checksum
const checksumPrefix = "sha256:"

const maxLine = 4 << 20

// Stage builds one batch from items. It validates and sorts a copy of items,
// serializes header plus one line per item, and compresses with a zeroed gzip header
func Stage(items []record.Item, meta domain.Meta) (domain.Batch, error) {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b record.Item) int { return strings.Compare(a.Video.VideoID, b.Video.VideoID) })

	for i, it := range sorted {
		if err := it.Validate(); err != nil {
			return domain.Batch{}, perr.WithOp(err, "stage")
		}
		if i > 0 && sorted[i-1].Video.VideoID == it.Video.VideoID {
			return domain.Batch{}, perr.WithField(perr.Malformedf("video %s appears twice in one batch", it.Video.VideoID), "video_id")
		}
	}

	h := domain.Header{
		Format:   domain.Format,
		RunID:    meta.RunID,
		Sequence: meta.Sequence(),
		Day:      meta.Day(),
		Regions:  domain.RegionSet(sorted, meta.Regions),
		Count:    len(sorted),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h); err != nil {
		return domain.Batch{}, perr.Wrap(err, perr.ErrorCodeJSON, "encode batch header")
	}
	for _, it := range sorted {
		if err := enc.Encode(it); err != nil {
			return domain.Batch{}, perr.Wrapf(err, perr.ErrorCodeJSON, "encode item %s", it.Video.VideoID)
		}
	}
	payload := buf.Bytes()

	sum := sha256.Sum256(payload)
	checksum := hex.EncodeToString(sum[:])

	body, err := compress(payload, checksum)
	if err != nil {
		return domain.Batch{}, err
	}

	return domain.Batch{
		Header:   h,
		Checksum: checksum,
		Key:      domain.BatchKey(h.Day, h.Regions, checksum),
		Items:    sorted,
		Payload:  payload,
		Body:     body,
	}, nil
}

func compress(payload []byte, checksum string) ([]byte, error) {
	var out bytes.Buffer
	zw, err := gzip.NewWriterLevel(&out, gzip.BestCompression)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "gzip writer")
	}
	// zero time and name keep the body reproducible
	zw.Header = gzip.Header{Comment: checksumPrefix + checksum, OS: 255}
	if _, err := zw.Write(payload); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "gzip write")
	}
	if err := zw.Close(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "gzip close")
	}
	return out.Bytes(), nil
}

// Decode parses a staged body and verifies the checksum recorded in its gzip header
func Decode(body []byte) (domain.Batch, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return domain.Batch{}, perr.Wrap(err, perr.ErrorCodeMalformed, "open staged gzip")
	}
	defer zr.Close()

	want, ok := strings.CutPrefix(zr.Header.Comment, checksumPrefix)
	if !ok {
		return domain.Batch{}, perr.Malformedf("staged body has no checksum")
	}
	payload, err := io.ReadAll(zr)
	if err != nil {
		return domain.Batch{}, perr.Wrap(err, perr.ErrorCodeMalformed, "read staged gzip")
	}
	sum := sha256.Sum256(payload)
	if got := hex.EncodeToString(sum[:]); got != want {
		return domain.Batch{}, perr.WithField(perr.Malformedf("checksum mismatch: header %s, payload %s", want, got), "checksum")
	}

	b, err := parse(payload)
	if err != nil {
		return domain.Batch{}, err
	}
	b.Checksum = want
	b.Key = domain.BatchKey(b.Day, b.Regions, want)
	b.Payload = payload
	b.Body = body
	return b, nil
}

// DecodeKey is Decode plus a check that the key names the same content
func DecodeKey(key string, body []byte) (domain.Batch, error) {
	info, err := domain.ParseBatchKey(key)
	if err != nil {
		return domain.Batch{}, err
	}
	b, err := Decode(body)
	if err != nil {
		return domain.Batch{}, perr.WithOp(err, key)
	}
	if b.Checksum != info.Checksum {
		return domain.Batch{}, perr.WithField(perr.Malformedf("key %s holds batch %s", key, b.Checksum), "checksum")
	}
	b.Key = key
	return b, nil
}

func parse(payload []byte) (domain.Batch, error) {
	sc := bufio.NewScanner(bytes.NewReader(payload))
	sc.Buffer(make([]byte, 64*1024), maxLine)

	if !sc.Scan() {
		return domain.Batch{}, perr.Malformedf("staged payload is empty")
	}
	var b domain.Batch
	if err := json.Unmarshal(sc.Bytes(), &b.Header); err != nil {
		return domain.Batch{}, perr.Wrap(err, perr.ErrorCodeMalformed, "decode batch header")
	}
	if b.Format != domain.Format {
		return domain.Batch{}, perr.WithField(perr.Malformedf("unsupported batch format %q", b.Format), "format")
	}

	b.Items = make([]record.Item, 0, b.Count)
	for sc.Scan() {
		var it record.Item
		if err := json.Unmarshal(sc.Bytes(), &it); err != nil {
			return domain.Batch{}, perr.Wrapf(err, perr.ErrorCodeMalformed, "decode item line %d", len(b.Items)+2)
		}
		b.Items = append(b.Items, it)
	}
	if err := sc.Err(); err != nil {
		return domain.Batch{}, perr.Wrap(err, perr.ErrorCodeMalformed, "scan staged payload")
	}
	if len(b.Items) != b.Count {
		return domain.Batch{}, perr.WithField(perr.Malformedf("header count %d, found %d items", b.Count, len(b.Items)), "count")
	}
	return b, nil
}
