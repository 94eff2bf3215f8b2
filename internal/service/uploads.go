package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/gofrs/uuid/v5"

	"github.com/jimei-edu/authsvc/internal/errs"
	"github.com/jimei-edu/authsvc/internal/model"
)

// STSClient is the subset of the STS API used to mint scoped upload
// credentials. Implemented by *sts.Client.
type STSClient interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// UploadConfig holds object-storage settings for delegated uploads.
type UploadConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Endpoint        string
	Region          string
	RoleARN         string // empty disables STS and returns static keys (dev only)
	PathPrefix      string // e.g. "avatars/"
	GrantTTL        time.Duration
}

// Configured reports whether the provider settings are complete enough to
// issue any grant at all.
func (c UploadConfig) Configured() bool {
	return c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != "" && c.Endpoint != ""
}

// UploadService issues short-lived, narrowly-scoped storage credentials.
type UploadService interface {
	// IssueGrant mints an upload grant scoped to the user's own prefix.
	IssueGrant(ctx context.Context, userID uuid.UUID) (*model.UploadGrant, error)
}

type UploadServiceImpl struct {
	cfg UploadConfig
	sts STSClient
}

// NewUploadService constructs UploadService. sts may be nil when no role ARN
// is configured.
func NewUploadService(cfg UploadConfig, stsClient STSClient) *UploadServiceImpl {
	return &UploadServiceImpl{cfg: cfg, sts: stsClient}
}

// IssueGrant returns temporary credentials valid for GrantTTL, restricted to
// a fresh per-user upload path. With no role ARN configured it falls back to
// the static keys (dev mode); the grant shape is identical either way.
func (s *UploadServiceImpl) IssueGrant(ctx context.Context, userID uuid.UUID) (*model.UploadGrant, error) {
	if !s.cfg.Configured() {
		return nil, errs.ErrStorageUnconfigured
	}

	session, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	uploadPath := fmt.Sprintf("%s%s/%s/", s.cfg.PathPrefix, userID, session)

	if s.cfg.RoleARN == "" {
		return &model.UploadGrant{
			AccessKeyID:     s.cfg.AccessKeyID,
			AccessKeySecret: s.cfg.AccessKeySecret,
			Bucket:          s.cfg.Bucket,
			Endpoint:        s.cfg.Endpoint,
			Region:          s.cfg.Region,
			UploadPath:      uploadPath,
			ExpiresAtMillis: time.Now().Add(s.cfg.GrantTTL).UnixMilli(),
		}, nil
	}

	policy := fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Action": ["s3:PutObject", "s3:PutObjectAcl"],
      "Resource": "arn:aws:s3:::%s/%s*"
    }
  ]
}`, s.cfg.Bucket, uploadPath)

	out, err := s.sts.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(s.cfg.RoleARN),
		RoleSessionName: aws.String("avatar-upload-" + userID.String()),
		DurationSeconds: aws.Int32(int32(s.cfg.GrantTTL / time.Second)),
		Policy:          aws.String(policy),
	})
	if err != nil {
		return nil, fmt.Errorf("assume role: %w", err)
	}

	creds := out.Credentials
	return &model.UploadGrant{
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		AccessKeySecret: aws.ToString(creds.SecretAccessKey),
		SecurityToken:   aws.ToString(creds.SessionToken),
		Bucket:          s.cfg.Bucket,
		Endpoint:        s.cfg.Endpoint,
		Region:          s.cfg.Region,
		UploadPath:      uploadPath,
		ExpiresAtMillis: aws.ToTime(creds.Expiration).UnixMilli(),
	}, nil
}
