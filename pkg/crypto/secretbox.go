/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package crypto protects SNMP credential material at rest.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/wardflux/wardflux/pkg/models"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

//go:generate mockgen -destination=mock_crypto.go -package=crypto github.com/wardflux/wardflux/pkg/crypto Decrypter

var (
	ErrNoKey             = errors.New("no secret key configured")
	ErrInvalidPayload    = errors.New("invalid encrypted payload")
	ErrCredentialDecrypt = errors.New("credential decrypt failed")
)

// passphraseSalt is fixed so that the same passphrase yields the same key on
// every node.
var passphraseSalt = []byte("wardflux/snmp-credentials/v1")

// Decrypter turns stored ciphertext back into plaintext.
type Decrypter interface {
	Decrypt(payload string) (string, error)
}

// SecretBox is an XChaCha20-Poly1305 sealer. Payloads are base64 of
// nonce || ciphertext.
type SecretBox struct {
	key []byte
}

// NewSecretBox builds a SecretBox from a base64 encoded 32 byte key. Any other
// non-empty value is treated as a passphrase and stretched with Argon2id.
func NewSecretBox(secret string) (*SecretBox, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrNoKey
	}

	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == chacha20poly1305.KeySize {
		return &SecretBox{key: raw}, nil
	}

	return &SecretBox{key: argon2.IDKey([]byte(secret), passphraseSalt, 1, 64*1024, 4, chacha20poly1305.KeySize)}, nil
}

// Encrypt seals plaintext. An empty plaintext encrypts to an empty payload.
func (s *SecretBox) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a payload produced by Encrypt.
func (s *SecretBox) Decrypt(payload string) (string, error) {
	if payload == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}

	if len(data) < aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalidPayload
	}

	plain, err := aead.Open(nil, data[:aead.NonceSize()], data[aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	return string(plain), nil
}

// DecryptCredential opens every secret field of an SNMP credential.
func DecryptCredential(d Decrypter, cred *models.SNMPCredential) (models.SNMPSecrets, error) {
	var (
		out models.SNMPSecrets
		err error
	)

	if out.Community, err = d.Decrypt(cred.CommunityEnc); err != nil {
		return models.SNMPSecrets{}, fmt.Errorf("%w: community: %w", ErrCredentialDecrypt, err)
	}

	if out.AuthKey, err = d.Decrypt(cred.AuthKeyEnc); err != nil {
		return models.SNMPSecrets{}, fmt.Errorf("%w: auth key: %w", ErrCredentialDecrypt, err)
	}

	if out.PrivKey, err = d.Decrypt(cred.PrivKeyEnc); err != nil {
		return models.SNMPSecrets{}, fmt.Errorf("%w: priv key: %w", ErrCredentialDecrypt, err)
	}

	return out, nil
}
