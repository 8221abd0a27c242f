package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/callback"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/identity"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/oauth"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/session"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/storage"
	"github.com/supermanko1102/oflow-monorepo-sub001/internal/teams"
)

type fakeInstaller struct {
	calls int
	err   error
}

func (f *fakeInstaller) InstallSession(ctx context.Context, access, refresh string) (*session.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &session.Session{AccessToken: access, RefreshToken: refresh, User: session.User{ID: "user-from-session"}}, nil
}

type noLister struct{}

func (noLister) List(ctx context.Context) ([]teams.Membership, error) { return nil, nil }

type fixture struct {
	installer *fakeInstaller
	dir       *teams.Directory
	store     *identity.Store
	ingester  *Ingester
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		installer: &fakeInstaller{},
		dir:       teams.NewDirectory(noLister{}),
		store:     identity.NewStore(storage.NewMemoryKV(), nil),
	}
	f.ingester = New(f.installer, f.dir, f.store)
	return f
}

func TestIngest_Success(t *testing.T) {
	f := newFixture(t)
	s, err := f.ingester.Ingest(context.Background(), oauth.ProviderLINE, callback.Payload{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Profile:      callback.Profile{LineUserID: "U1", DisplayName: "Mei"},
		Teams:        []teams.Membership{{TeamID: "t1", TeamName: "Bakery", Role: teams.RoleOwner}},
	})
	require.NoError(t, err)
	assert.Equal(t, "access-1", s.AccessToken)

	id := f.store.Snapshot()
	assert.True(t, id.LoggedIn)
	assert.Equal(t, "U1", id.LineUserID)
	assert.Equal(t, "user-from-session", id.UserID)
	assert.Equal(t, "Mei", id.DisplayName)
	assert.Equal(t, "access-1", id.AccessToken)

	view := f.dir.Snapshot()
	assert.Equal(t, teams.StatusLoaded, view.Status)
	require.Len(t, view.Teams, 1)
}

func TestIngest_NoTeamsLeavesDirectoryIdle(t *testing.T) {
	f := newFixture(t)
	_, err := f.ingester.Ingest(context.Background(), oauth.ProviderApple, callback.Payload{
		AccessToken:  "a",
		RefreshToken: "r",
	})
	require.NoError(t, err)
	assert.Equal(t, teams.StatusIdle, f.dir.Snapshot().Status)
	assert.True(t, f.store.IsLoggedIn())
}

func TestIngest_ErrorPayloadChangesNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.ingester.Ingest(context.Background(), oauth.ProviderLINE, callback.Payload{
		Error:            "server_error",
		ErrorDescription: "exchange failed",
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAuthProviderRejected, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "LINE login failed")
	assert.Contains(t, err.Error(), "exchange failed")

	assert.Zero(t, f.installer.calls)
	assert.False(t, f.store.IsLoggedIn())
}

func TestIngest_RejectedSessionChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.installer.err = errors.NewSessionInstallError(nil)

	_, err := f.ingester.Ingest(context.Background(), oauth.ProviderLINE, callback.Payload{
		AccessToken:  "a",
		RefreshToken: "r",
		Teams:        []teams.Membership{{TeamID: "t1"}},
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSessionInstall, errors.CodeOf(err))
	assert.False(t, f.store.IsLoggedIn())
	assert.Equal(t, teams.StatusIdle, f.dir.Snapshot().Status, "teams are not seeded for a rejected session")
}

func TestIngest_MissingTokens(t *testing.T) {
	f := newFixture(t)
	_, err := f.ingester.Ingest(context.Background(), oauth.ProviderLINE, callback.Payload{AccessToken: "a"})
	assert.Equal(t, errors.ErrCodeAuthInvalidResponse, errors.CodeOf(err))
	assert.Zero(t, f.installer.calls)
}

func TestLink(t *testing.T) {
	f := newFixture(t)
	_, err := f.ingester.Link(context.Background(),
		"oflow://auth?access_token=a&refresh_token=r&user_id=u1&display_name=Mei&teams=%5B%5D")
	require.NoError(t, err)

	id := f.store.Snapshot()
	assert.Equal(t, "u1", id.UserID)
	view := f.dir.Snapshot()
	assert.Equal(t, teams.StatusLoaded, view.Status)
	assert.Empty(t, view.Teams)

	_, err = f.ingester.Link(context.Background(), "oflow://auth?nothing=here")
	assert.Equal(t, errors.ErrCodeAuthInvalidResponse, errors.CodeOf(err))
}

func TestResult(t *testing.T) {
	f := newFixture(t)
	_, err := f.ingester.Result(context.Background(), &oauth.Result{
		Provider:     oauth.ProviderApple,
		AccessToken:  "a",
		RefreshToken: "r",
		Profile:      callback.Profile{UserID: "apple-user", DisplayName: "Mei"},
	})
	require.NoError(t, err)
	assert.Equal(t, "apple-user", f.store.Snapshot().UserID)
}
