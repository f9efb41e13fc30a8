package credentials

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/kestrelsec/workflow-runner/pkg/workflow/apperr"
)

// Store is the Credential Store (C3): fetches encrypted credentials from
// the credentials table, decrypts them, and returns typed secrets.
type Store struct {
	db     *sqlx.DB
	cipher *Cipher
}

func NewStore(db *sqlx.DB, cipher *Cipher) *Store {
	return &Store{db: db, cipher: cipher}
}

type credentialRow struct {
	EncryptedSecret string  `db:"encrypted_secret"`
	CredentialType  *string `db:"credential_type"`
}

// FetchSecret returns the decrypted plaintext and the credential's
// optional integration type tag. apperr.NotFound if no row matches.
func (s *Store) FetchSecret(ctx context.Context, workflowID, credentialName string) (string, *string, error) {
	var row credentialRow
	err := s.db.GetContext(ctx, &row,
		`SELECT encrypted_secret, credential_type FROM credentials WHERE workflow_id = $1 AND credential_name = $2`,
		workflowID, credentialName)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return "", nil, apperr.New(apperr.NotFound, "missing credentials: %q", credentialName)
		}
		return "", nil, apperr.New(apperr.NotFound, "failed to fetch credential %q: %s", credentialName, err)
	}

	plaintext, err := s.cipher.Decrypt(row.EncryptedSecret)
	if err != nil {
		return "", nil, err
	}
	return plaintext, row.CredentialType, nil
}

// FetchTyped decrypts the credential and parses its plaintext as JSON
// into dest. apperr.MissingCredential / apperr.MalformedCredential per
// the spec's §4.3 contract.
func (s *Store) FetchTyped(ctx context.Context, workflowID, credentialName string, dest interface{}) (*string, error) {
	plaintext, credentialType, err := s.FetchSecret(ctx, workflowID, credentialName)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, apperr.New(apperr.MissingCredential, "missing credentials: %q", credentialName)
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(plaintext), dest); err != nil {
		return nil, apperr.New(apperr.MalformedCredential, "received malformed credential: %s", err)
	}
	return credentialType, nil
}

// UpdateSecret re-encrypts plaintext and overwrites the stored ciphertext
// for (workflowID, credentialName). Used by the Mode-A OAuth write-back
// path (§4.4) — supplemented per SPEC_FULL.md §12.6.
func (s *Store) UpdateSecret(ctx context.Context, workflowID, credentialName, plaintext string) error {
	ciphertext, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET encrypted_secret = $1 WHERE workflow_id = $2 AND credential_name = $3`,
		ciphertext, workflowID, credentialName)
	if err != nil {
		return apperr.New(apperr.NotFound, "failed to update credential %q: %s", credentialName, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperr.New(apperr.NotFound, "failed to confirm credential update: %s", err)
	}
	if rows != 1 {
		return apperr.New(apperr.NotFound, "missing credentials: %q", credentialName)
	}
	return nil
}
