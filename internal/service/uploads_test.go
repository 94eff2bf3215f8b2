package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/gofrs/uuid/v5"

	"github.com/jimei-edu/authsvc/internal/errs"
)

type fakeSTS struct {
	lastInput *sts.AssumeRoleInput
	err       error
	calls     int
}

var _ STSClient = (*fakeSTS)(nil)

func (f *fakeSTS) AssumeRole(_ context.Context, in *sts.AssumeRoleInput, _ ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	f.calls++
	f.lastInput = in
	if f.err != nil {
		return nil, f.err
	}
	exp := time.Now().Add(time.Hour)
	return &sts.AssumeRoleOutput{
		Credentials: &ststypes.Credentials{
			AccessKeyId:     aws.String("tmp-key"),
			SecretAccessKey: aws.String("tmp-secret"),
			SessionToken:    aws.String("tmp-token"),
			Expiration:      &exp,
		},
	}, nil
}

func devConfig() UploadConfig {
	return UploadConfig{
		AccessKeyID:     "static-key",
		AccessKeySecret: "static-secret",
		Bucket:          "media",
		Endpoint:        "https://s3.example.com",
		Region:          "eu-west-1",
		PathPrefix:      "avatars/",
		GrantTTL:        time.Hour,
	}
}

func TestUploads_Unconfigured(t *testing.T) {
	t.Parallel()

	s := NewUploadService(UploadConfig{}, nil)
	if _, err := s.IssueGrant(context.Background(), uuid.Must(uuid.NewV4())); !errors.Is(err, errs.ErrStorageUnconfigured) {
		t.Fatalf("got %v, want ErrStorageUnconfigured", err)
	}
}

func TestUploads_StaticGrantWithoutRole(t *testing.T) {
	t.Parallel()

	userID := uuid.Must(uuid.NewV4())
	s := NewUploadService(devConfig(), nil)

	g, err := s.IssueGrant(context.Background(), userID)
	if err != nil {
		t.Fatalf("IssueGrant: %v", err)
	}
	if g.AccessKeyID != "static-key" || g.AccessKeySecret != "static-secret" {
		t.Fatalf("want static keys back, got %+v", g)
	}
	if g.SecurityToken != "" {
		t.Fatalf("static grant must not carry a session token")
	}
	if !strings.HasPrefix(g.UploadPath, "avatars/"+userID.String()+"/") || !strings.HasSuffix(g.UploadPath, "/") {
		t.Fatalf("bad upload path: %q", g.UploadPath)
	}
	if until := g.ExpiresAtMillis - time.Now().UnixMilli(); until <= 0 || until > time.Hour.Milliseconds() {
		t.Fatalf("expiry outside the one-hour window: %d ms", until)
	}
}

func TestUploads_AssumeRoleGrant(t *testing.T) {
	t.Parallel()

	cfg := devConfig()
	cfg.RoleARN = "arn:aws:iam::123456789012:role/avatar-upload"
	stsc := &fakeSTS{}
	userID := uuid.Must(uuid.NewV4())

	g, err := NewUploadService(cfg, stsc).IssueGrant(context.Background(), userID)
	if err != nil {
		t.Fatalf("IssueGrant: %v", err)
	}
	if stsc.calls != 1 {
		t.Fatalf("AssumeRole calls = %d, want 1", stsc.calls)
	}

	in := stsc.lastInput
	if aws.ToString(in.RoleArn) != cfg.RoleARN {
		t.Fatalf("role arn = %q", aws.ToString(in.RoleArn))
	}
	if aws.ToInt32(in.DurationSeconds) != 3600 {
		t.Fatalf("duration = %d, want 3600", aws.ToInt32(in.DurationSeconds))
	}
	if want := "avatar-upload-" + userID.String(); aws.ToString(in.RoleSessionName) != want {
		t.Fatalf("session name = %q, want %q", aws.ToString(in.RoleSessionName), want)
	}
	policy := aws.ToString(in.Policy)
	if !strings.Contains(policy, "media/"+"avatars/"+userID.String()) {
		t.Fatalf("policy not scoped to user prefix: %s", policy)
	}
	if !strings.Contains(policy, "s3:PutObject") {
		t.Fatalf("policy missing PutObject: %s", policy)
	}

	if g.AccessKeyID != "tmp-key" || g.AccessKeySecret != "tmp-secret" || g.SecurityToken != "tmp-token" {
		t.Fatalf("temporary credentials not mapped: %+v", g)
	}
	if g.Bucket != "media" || g.Region != "eu-west-1" {
		t.Fatalf("bucket/region not mapped: %+v", g)
	}

	stsc.err = errors.New("sts down")
	if _, err := NewUploadService(cfg, stsc).IssueGrant(context.Background(), userID); err == nil {
		t.Fatalf("want error when STS call fails")
	}
}
