package codec

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"tubesense/internal/core/record"
	"tubesense/internal/core/sentiment"
	perr "tubesense/internal/platform/errors"
	"tubesense/internal/services/stage/domain"
)

var started = time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)

func item(id, region string) record.Item {
	subs := int64(10)
	return record.Item{
		Video: record.Video{
			VideoID:        id,
			ChannelID:      "ch-" + id,
			Title:          "Title <" + id + ">",
			Tags:           []string{"go", "tips"},
			CategoryID:     27,
			Region:         region,
			SearchKeyword:  "tutorial",
			PublishedAt:    started.Add(-48 * time.Hour),
			ViewCount:      1000,
			LikeCount:      50,
			CommentCount:   5,
			EngagementRate: record.EngagementRate(1000, 50, 5),
			CollectedAt:    started,
		},
		Channel: record.Channel{
			ChannelID:       "ch-" + id,
			Title:           "Channel",
			Country:         "AU",
			SubscriberCount: &subs,
			CollectedAt:     started,
		},
		Classification: sentiment.Result{Sentiment: sentiment.Positive, Method: sentiment.ByCategory},
	}
}

func meta() domain.Meta {
	return domain.Meta{RunID: "run-1", StartedAt: started, Regions: []string{"US"}}
}

func TestStage_DeterministicAcrossInputOrder(t *testing.T) {
	a, err := Stage([]record.Item{item("v2", "US"), item("v1", "CA"), item("v3", "AU")}, meta())
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	b, err := Stage([]record.Item{item("v3", "AU"), item("v2", "US"), item("v1", "CA")}, meta())
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if !bytes.Equal(a.Body, b.Body) || a.Checksum != b.Checksum || a.Key != b.Key {
		t.Fatalf("re-staging changed the batch: %s vs %s", a.Key, b.Key)
	}

	if a.Items[0].Video.VideoID != "v1" || a.Items[2].Video.VideoID != "v3" {
		t.Fatalf("items not sorted by video id")
	}
	key := regexp.MustCompile(`^staged/dt=2024-03-01/regions=AU-CA-US/[0-9a-f]{64}\.ndjson\.gz$`)
	if !key.MatchString(a.Key) {
		t.Fatalf("key = %s", a.Key)
	}
	if a.Sequence != started.UnixMilli()*1000 || a.Count != 3 {
		t.Fatalf("header = %+v", a.Header)
	}
	// html stays unescaped so payloads read naturally
	if !strings.Contains(string(a.Payload), "Title <v1>") {
		t.Fatalf("payload escaped html")
	}
}

func TestStage_ChecksumTracksContent(t *testing.T) {
	a, _ := Stage([]record.Item{item("v1", "US")}, meta())
	changed := item("v1", "US")
	changed.Video.ViewCount++
	b, _ := Stage([]record.Item{changed}, meta())
	if a.Checksum == b.Checksum {
		t.Fatal("different content, same checksum")
	}
	m := meta()
	m.Chunk = 1
	c, _ := Stage([]record.Item{item("v1", "US")}, m)
	if c.Sequence != a.Sequence+1 || c.Checksum == a.Checksum {
		t.Fatalf("chunk index must move the sequence: %d vs %d", c.Sequence, a.Sequence)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	in, err := Stage([]record.Item{item("v2", "US"), item("v1", "US")}, meta())
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	out, err := DecodeKey(in.Key, in.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Checksum != in.Checksum || out.Key != in.Key || out.Sequence != in.Sequence || len(out.Items) != 2 {
		t.Fatalf("decoded = %+v", out.Header)
	}
	v := out.Items[1]
	if v.Video.VideoID != "v2" || !v.Video.PublishedAt.Equal(in.Items[1].Video.PublishedAt) || *v.Channel.SubscriberCount != 10 {
		t.Fatalf("item = %+v", v)
	}

	again, err := Stage(out.Items, meta())
	if err != nil || again.Checksum != in.Checksum {
		t.Fatalf("decoded items do not re-stage to the same batch: %v", err)
	}
}

func TestDecode_DetectsTampering(t *testing.T) {
	in, _ := Stage([]record.Item{item("v1", "US")}, meta())

	tampered := bytes.Replace(in.Payload, []byte(`"view_count":1000`), []byte(`"view_count":9999`), 1)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Comment = checksumPrefix + in.Checksum
	_, _ = zw.Write(tampered)
	_ = zw.Close()

	_, err := Decode(buf.Bytes())
	if !perr.IsCode(err, perr.ErrorCodeMalformed) {
		t.Fatalf("err = %v", err)
	}

	if _, err := Decode([]byte("not gzip")); !perr.IsCode(err, perr.ErrorCodeMalformed) {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeKey_RejectsForeignKey(t *testing.T) {
	a, _ := Stage([]record.Item{item("v1", "US")}, meta())
	b, _ := Stage([]record.Item{item("v2", "US")}, meta())
	if _, err := DecodeKey(a.Key, b.Body); err == nil {
		t.Fatal("body of b accepted under key of a")
	}
	if _, err := DecodeKey("staged/whatever", a.Body); err == nil {
		t.Fatal("bad key accepted")
	}
}

func TestStage_RejectsInvalidItems(t *testing.T) {
	bad := item("v1", "US")
	bad.Channel.ChannelID = "other"
	if _, err := Stage([]record.Item{bad}, meta()); !perr.IsCode(err, perr.ErrorCodeMalformed) {
		t.Fatalf("err = %v", err)
	}
	if _, err := Stage([]record.Item{item("v1", "US"), item("v1", "CA")}, meta()); !perr.IsCode(err, perr.ErrorCodeMalformed) {
		t.Fatalf("duplicate ids: err = %v", err)
	}
}

func TestStage_EmptyBatchUsesMetaRegions(t *testing.T) {
	b, err := Stage(nil, domain.Meta{RunID: "r", StartedAt: started, Regions: []string{"US", "IN"}})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if b.Count != 0 || !strings.Contains(b.Key, "/regions=IN-US/") {
		t.Fatalf("batch = %+v", b.Header)
	}
	out, err := Decode(b.Body)
	if err != nil || len(out.Items) != 0 {
		t.Fatalf("decode empty: %v", err)
	}
}
