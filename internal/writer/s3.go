package writer

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/exportengine/engine/internal/model"
	"github.com/rs/zerolog"
)

// S3Writer renders a run's rows as CSV and uploads the result as one
// object per write, keyed by the configuration's destination descriptor
// (spec §6 "destination descriptor is opaque", interpreted here as an S3
// object key within a fixed bucket).
type S3Writer struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	log      zerolog.Logger
}

// NewS3Writer constructs a writer against one bucket using an already
// configured aws-sdk-go-v2 client (region/credentials resolved by the
// caller via config.LoadDefaultConfig).
func NewS3Writer(client *s3.Client, bucket string, log zerolog.Logger) *S3Writer {
	return &S3Writer{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		log:      log.With().Str("component", "s3_writer").Logger(),
	}
}

// Write uploads headers+rows as a CSV object. overwrite replaces the
// destination key outright; append writes a timestamped sibling key, since
// S3 objects cannot be appended to in place.
func (w *S3Writer) Write(ctx context.Context, destination string, headers []string, rows [][]string, mode model.WriteMode) (int, error) {
	buf := &bytes.Buffer{}
	cw := csv.NewWriter(buf)
	if err := cw.Write(headers); err != nil {
		return 0, fmt.Errorf("encode csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("encode csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}

	key := objectKey(destination, mode)

	w.log.Info().Str("bucket", w.bucket).Str("key", key).Int("rows", len(rows)).Msg("uploading export")

	_, err := w.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &w.bucket,
		Key:         &key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: stringPtr("text/csv"),
	})
	if err != nil {
		return 0, fmt.Errorf("upload export to s3: %w", err)
	}

	return len(rows), nil
}

// objectKey derives the S3 key a write targets. overwrite always reuses
// destination verbatim; append mints a new timestamped key alongside it so
// successive runs accumulate rather than clobber.
func objectKey(destination string, mode model.WriteMode) string {
	if mode == model.WriteOverwrite {
		return destination
	}
	trimmed := strings.TrimSuffix(destination, ".csv")
	return fmt.Sprintf("%s-%s.csv", trimmed, time.Now().UTC().Format("20060102T150405"))
}

func stringPtr(s string) *string { return &s }
