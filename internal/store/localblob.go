package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"

	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/providers/aws/common"
)

const blobSuffix = ".audit.json"

// envelope is the on-disk shape of one encrypted report. The report JSON is
// sealed with a fresh AES-256-GCM data key; the data key itself is stored
// wrapped by the account's KMS key, so the file is useless without a Decrypt
// grant on that key.
type envelope struct {
	AuditID     string    `json:"audit_id"`
	GeneratedAt time.Time `json:"generated_at"`
	KeyARN      string    `json:"key_arn"`
	WrappedKey  []byte    `json:"wrapped_key"`
	Nonce       []byte    `json:"nonce"`
	Ciphertext  []byte    `json:"ciphertext"`
}

// LocalBlobStore writes one encrypted file per audit under a directory.
type LocalBlobStore struct {
	dir    string
	keyARN string
	client common.KMSClient
}

// NewLocalBlobStore returns a store writing to dir, sealing every report
// under the KMS key keyARN. The directory is created if missing.
func NewLocalBlobStore(dir, keyARN string, client common.KMSClient) (*LocalBlobStore, error) {
	if keyARN == "" {
		return nil, fmt.Errorf("local blob store requires a KMS key ARN")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store directory %q: %w", dir, err)
	}
	return &LocalBlobStore{dir: dir, keyARN: keyARN, client: client}, nil
}

func (s *LocalBlobStore) SaveReport(ctx context.Context, report *models.AuditReport) error {
	if report.AuditID == "" {
		return fmt.Errorf("report has no audit ID")
	}

	plaintext, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report %q: %w", report.AuditID, err)
	}

	dataKey := make([]byte, 32)
	if _, err := rand.Read(dataKey); err != nil {
		return fmt.Errorf("generate data key: %w", err)
	}

	wrapped, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:               &s.keyARN,
		Plaintext:           dataKey,
		EncryptionAlgorithm: kmstypes.EncryptionAlgorithmSpecSymmetricDefault,
	})
	if err != nil {
		return fmt.Errorf("wrap data key with %q: %w", s.keyARN, err)
	}

	nonce, ciphertext, err := seal(dataKey, plaintext)
	if err != nil {
		return fmt.Errorf("seal report %q: %w", report.AuditID, err)
	}

	blob, err := json.Marshal(envelope{
		AuditID:     report.AuditID,
		GeneratedAt: report.GeneratedAt,
		KeyARN:      s.keyARN,
		WrappedKey:  wrapped.CiphertextBlob,
		Nonce:       nonce,
		Ciphertext:  ciphertext,
	})
	if err != nil {
		return fmt.Errorf("marshal envelope for %q: %w", report.AuditID, err)
	}

	path := s.pathFor(report.AuditID)
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

func (s *LocalBlobStore) LoadReport(ctx context.Context, auditID string) (*models.AuditReport, error) {
	path := s.pathFor(auditID)
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}

	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("parse envelope %q: %w", path, err)
	}

	unwrapped, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:               &env.KeyARN,
		CiphertextBlob:      env.WrappedKey,
		EncryptionAlgorithm: kmstypes.EncryptionAlgorithmSpecSymmetricDefault,
	})
	if err != nil {
		return nil, fmt.Errorf("unwrap data key for %q: %w", auditID, err)
	}

	plaintext, err := open(unwrapped.Plaintext, env.Nonce, env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("unseal report %q: %w", auditID, err)
	}

	var report models.AuditReport
	if err := json.Unmarshal(plaintext, &report); err != nil {
		return nil, fmt.Errorf("parse report %q: %w", auditID, err)
	}
	return &report, nil
}

func (s *LocalBlobStore) ListAudits(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store directory %q: %w", s.dir, err)
	}

	type stamped struct {
		id string
		at time.Time
	}
	var found []stamped
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, blobSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, blobSuffix)
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, stamped{id: id, at: info.ModTime()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].at.Before(found[j].at) })

	ids := make([]string, 0, len(found))
	for _, f := range found {
		ids = append(ids, f.id)
	}
	return ids, nil
}

func (s *LocalBlobStore) pathFor(auditID string) string {
	return filepath.Join(s.dir, auditID+blobSuffix)
}

func seal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

func open(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, nonce, ciphertext, nil)
}
