package client

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalanithib94/eyeDocs-KTP/pkg/apiclient"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Session(t *testing.T) {
	s := openTestStore(t)

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Empty(t, tok)

	require.NoError(t, s.SaveSession("jwt-token", &apiclient.User{ID: "u1", Role: "optician"}))
	tok, _ = s.Token()
	assert.Equal(t, "jwt-token", tok)
	u, err := s.User()
	require.NoError(t, err)
	assert.Equal(t, "optician", u.Role)

	require.NoError(t, s.ClearSession())
	tok, _ = s.Token()
	assert.Empty(t, tok)
	u, _ = s.User()
	assert.Nil(t, u)
}

func TestStore_IsTokenSource(t *testing.T) {
	var _ apiclient.TokenSource = (*Store)(nil)
}

func TestStore_Drafts(t *testing.T) {
	s := openTestStore(t)
	s.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }

	_, err := s.LoadDraft("emma")
	assert.ErrorIs(t, err, ErrNoDraft)

	_, err = s.SaveDraft("emma", validForm())
	require.NoError(t, err)
	_, err = s.SaveDraft("alan", &apiclient.Referral{PatientName: "Alan Green"})
	require.NoError(t, err)

	d, err := s.LoadDraft("emma")
	require.NoError(t, err)
	assert.Equal(t, "Emma Thompson", d.Form.PatientName)
	assert.Equal(t, "2025-03-14T09:30:00Z", d.SavedAt.Format(time.RFC3339))

	all, err := s.ListDrafts()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alan", all[0].Name)

	require.NoError(t, s.ClearDraft("emma"))
	require.NoError(t, s.ClearDraft("emma"))
	_, err = s.LoadDraft("emma")
	assert.ErrorIs(t, err, ErrNoDraft)
}
