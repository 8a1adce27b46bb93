package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/repository"
	"k8s.io/klog/v2"
)

// AccessKeyService manages inbound API credentials. Only the salted
// SHA-256 hash of a key is stored; the plaintext is returned exactly
// once, from Create.
type AccessKeyService interface {
	Create(ctx context.Context, req *CreateAccessKeyRequest) (*model.AccessKey, string, error)
	Authenticate(ctx context.Context, plaintext string) (*model.AccessKey, error)
	List(ctx context.Context) ([]*model.AccessKey, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	Delete(ctx context.Context, id uint) error
}

type CreateAccessKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

var (
	ErrDuplicateKeyName = errors.New("access key name already exists")
	ErrKeyDisabled      = errors.New("access key is disabled")
	ErrInvalidStatus    = errors.New("invalid status")
)

// keyPrefix marks plaintext keys so leaked ones are recognizable in
// scanner output.
const keyPrefix = "gf_"

type accessKeyService struct {
	repo repository.AccessKeyRepository
	salt string
}

func NewAccessKeyService(repo repository.AccessKeyRepository, salt string) AccessKeyService {
	return &accessKeyService{repo: repo, salt: salt}
}

// HashKey derives the stored digest for a plaintext key.
func HashKey(plaintext, salt string) string {
	sum := sha256.Sum256([]byte(plaintext + salt))
	return hex.EncodeToString(sum[:])
}

func (s *accessKeyService) Create(ctx context.Context, req *CreateAccessKeyRequest) (*model.AccessKey, string, error) {
	klog.V(6).Infof("creating access key: name=%s", req.Name)

	if existing, err := s.repo.GetByName(ctx, req.Name); err == nil && existing != nil {
		klog.Warningf("access key name already exists: name=%s", req.Name)
		return nil, "", ErrDuplicateKeyName
	}

	plaintext, err := generateKey()
	if err != nil {
		return nil, "", fmt.Errorf("generate access key: %w", err)
	}

	key := &model.AccessKey{
		Name:    req.Name,
		KeyHash: HashKey(plaintext, s.salt),
		Prefix:  plaintext[:7],
		Status:  "enabled",
	}
	if err := s.repo.Create(ctx, key); err != nil {
		klog.Errorf("create access key failed: name=%s, error=%v", req.Name, err)
		return nil, "", err
	}

	klog.V(6).Infof("access key created: id=%d, name=%s", key.ID, key.Name)
	return key, plaintext, nil
}

func generateKey() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return keyPrefix + hex.EncodeToString(raw), nil
}

// Authenticate resolves a plaintext key to its record and counts the
// request. Unknown and disabled keys are indistinguishable to the
// caller's client; both end in a 401.
func (s *accessKeyService) Authenticate(ctx context.Context, plaintext string) (*model.AccessKey, error) {
	key, err := s.repo.GetByHash(ctx, HashKey(plaintext, s.salt))
	if err != nil {
		return nil, err
	}
	if !key.IsAvailable() {
		return nil, ErrKeyDisabled
	}
	if err := s.repo.RecordRequest(ctx, key.ID); err != nil {
		klog.Errorf("record access key request failed: id=%d, error=%v", key.ID, err)
	}
	return key, nil
}

func (s *accessKeyService) List(ctx context.Context) ([]*model.AccessKey, error) {
	return s.repo.List(ctx)
}

func (s *accessKeyService) UpdateStatus(ctx context.Context, id uint, status string) error {
	if status != "enabled" && status != "disabled" {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	klog.V(6).Infof("updating access key status: id=%d, status=%s", id, status)
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *accessKeyService) Delete(ctx context.Context, id uint) error {
	klog.V(6).Infof("deleting access key: id=%d", id)
	return s.repo.Delete(ctx, id)
}
