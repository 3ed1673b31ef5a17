/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package volume

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/seriesdb/seriesdb/status"
)

func init() {
	BackendRegistry["s3"] = func(basePath string, raw json.RawMessage) (Backend, error) {
		var cfg struct {
			AccessKeyID     string `json:"access_key_id"`
			SecretAccessKey string `json:"secret_access_key"`
			Region          string `json:"region"`
			Endpoint        string `json:"endpoint"`
			Bucket          string `json:"bucket"`
			Prefix          string `json:"prefix"`
			ForcePathStyle  bool   `json:"force_path_style"`
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, status.Wrap(status.BadInput, "invalid s3 backend config", err)
		}
		return newS3Backend(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.Region, cfg.Endpoint, cfg.Bucket, cfg.Prefix, cfg.ForcePathStyle)
	}
}

// s3Backend stores every page as a single S3 object keyed by
// <prefix>/<volID>/<pageID>, mirroring the teacher's object-per-unit
// layout in storage/persistence-s3.go (there per column/log segment, here
// per page — S3 has no partial-object append or in-place write either, so
// each WritePage is a full PutObject).
type s3Backend struct {
	client *s3.Client
	bucket string
	prefix string
}

func newS3Backend(accessKeyID, secretAccessKey, region, endpoint, bucket, prefix string, forcePathStyle bool) (*s3Backend, error) {
	ctx := context.Background()
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, status.Wrap(status.IoError, "load aws config", err)
	}
	var s3Opts []func(*s3.Options)
	if endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	if forcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	return &s3Backend{client: s3.NewFromConfig(cfg, s3Opts...), bucket: bucket, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

func (b *s3Backend) key(volID uint32, pageID uint64) string {
	return b.prefix + "/" + strconv.FormatUint(uint64(volID), 10) + "/" + strconv.FormatUint(pageID, 10)
}

func (b *s3Backend) WritePage(volID uint32, pageID uint64, data []byte) error {
	_, err := b.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(volID, pageID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return status.Wrap(status.IoError, "s3 put page", err)
	}
	return nil
}

func (b *s3Backend) ReadPage(volID uint32, pageID uint64, pageSize int) ([]byte, error) {
	resp, err := b.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(volID, pageID)),
	})
	if err != nil {
		// an unwritten page reads as all-zero, matching a freshly
		// allocated local file's sparse-hole semantics in fileBackend.
		return make([]byte, pageSize), nil
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, status.Wrap(status.IoError, "s3 read page body", err)
	}
	if len(data) < pageSize {
		padded := make([]byte, pageSize)
		copy(padded, data)
		return padded, nil
	}
	return data[:pageSize], nil
}

func (b *s3Backend) Sync() error { return nil } // S3 PutObject is already durable on success

func (b *s3Backend) Close() error { return nil }

func (b *s3Backend) Remove() error {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix + "/"),
	})
	ctx := context.Background()
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return status.Wrap(status.IoError, "s3 list for remove", err)
		}
		for _, obj := range page.Contents {
			_, _ = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: obj.Key})
		}
	}
	return nil
}
