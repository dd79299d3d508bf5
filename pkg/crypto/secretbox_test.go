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

package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wardflux/wardflux/pkg/models"
	"go.uber.org/mock/gomock"
)

func newKey(t *testing.T) string {
	t.Helper()

	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)

	return base64.StdEncoding.EncodeToString(raw)
}

func TestSecretBoxRoundTrip(t *testing.T) {
	box, err := NewSecretBox(newKey(t))
	require.NoError(t, err)

	sealed, err := box.Encrypt("public")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "public")

	plain, err := box.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "public", plain)
}

func TestSecretBoxPassphrase(t *testing.T) {
	a, err := NewSecretBox("correct horse battery staple")
	require.NoError(t, err)

	b, err := NewSecretBox("correct horse battery staple")
	require.NoError(t, err)

	sealed, err := a.Encrypt("private")
	require.NoError(t, err)

	plain, err := b.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "private", plain)
}

func TestSecretBoxWrongKey(t *testing.T) {
	a, err := NewSecretBox(newKey(t))
	require.NoError(t, err)

	b, err := NewSecretBox(newKey(t))
	require.NoError(t, err)

	sealed, err := a.Encrypt("public")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestSecretBoxRejects(t *testing.T) {
	_, err := NewSecretBox("  ")
	require.ErrorIs(t, err, ErrNoKey)

	box, err := NewSecretBox(newKey(t))
	require.NoError(t, err)

	_, err = box.Decrypt("!!!")
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = box.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, ErrInvalidPayload)

	empty, err := box.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecryptCredential(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	d := NewMockDecrypter(ctrl)
	d.EXPECT().Decrypt("c").Return("public", nil)
	d.EXPECT().Decrypt("a").Return("authkey", nil)
	d.EXPECT().Decrypt("p").Return("", errors.New("bad tag"))

	_, err := DecryptCredential(d, &models.SNMPCredential{CommunityEnc: "c", AuthKeyEnc: "a", PrivKeyEnc: "p"})
	require.ErrorIs(t, err, ErrCredentialDecrypt)
	assert.Contains(t, err.Error(), "priv key")
}
