// Copyright (c) 2026 Medica Movil
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package attachments

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Config configures the S3 blob store. It works against AWS S3 and any
// S3 compatible endpoint (Cloudflare R2, MinIO) via Endpoint.
type S3Config struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	// PublicBaseURL is prepended to the object key to build the public URL,
	// e.g. a CDN domain. When empty the uploader's reported location is used.
	PublicBaseURL string `yaml:"public_base_url"`
}

// NewS3Store creates an S3 backed BlobStore
func NewS3Store(cfg S3Config) (*S3Store, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, err
	}
	return &S3Store{
		uploader:      s3manager.NewUploader(sess),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

// S3Store implements BlobStore on S3
type S3Store struct {
	uploader      *s3manager.Uploader
	bucket        string
	publicBaseURL string
}

// Put implements BlobStore
func (a *S3Store) Put(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	out, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	if a.publicBaseURL != "" {
		return a.publicBaseURL + "/" + key, nil
	}
	return out.Location, nil
}
