package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sudooom.im.client/internal/errors"
	"sudooom.im.client/internal/proto"
	"sudooom.im.client/internal/transport/transporttest"
)

func TestManager_Login(t *testing.T) {
	fake := transporttest.New()
	fake.Reply(proto.ActionLogin, `{"success":true}`)
	m := NewManager(fake)

	assert.ErrorIs(t, m.Require(), apperrors.ErrNotLoggedIn)

	require.NoError(t, m.Login(context.Background(), "alice", 7000))
	assert.True(t, m.LoggedIn())
	assert.Equal(t, "alice", m.Identity())
	assert.NoError(t, m.Require())

	calls := fake.Calls(proto.ActionLogin)
	require.Len(t, calls, 1)
	assert.Equal(t, proto.LoginPayload{Username: "alice", UDPPort: 7000}, calls[0].Payload)
}

func TestManager_LoginRejected(t *testing.T) {
	fake := transporttest.New()
	fake.Reply(proto.ActionLogin, `{"success":false,"message":"user already online"}`)
	m := NewManager(fake)

	err := m.Login(context.Background(), "alice", 7000)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrApplication))
	assert.Equal(t, "user already online", apperrors.GetMessage(err))
	assert.False(t, m.LoggedIn())
	assert.Empty(t, m.Identity())
}

func TestManager_LoginTransportError(t *testing.T) {
	fake := transporttest.New()
	fake.Fail(proto.ActionLogin, apperrors.ErrTimeout)
	m := NewManager(fake)

	err := m.Login(context.Background(), "alice", 7000)
	assert.True(t, apperrors.Is(err, apperrors.ErrTimeout))
	assert.False(t, m.LoggedIn())
}

func TestManager_LoginEmptyIdentity(t *testing.T) {
	fake := transporttest.New()
	m := NewManager(fake)

	err := m.Login(context.Background(), "  ", 7000)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParams))
	assert.Zero(t, fake.Count(proto.ActionLogin))
}

func TestManager_LoginTwice(t *testing.T) {
	fake := transporttest.New()
	fake.Reply(proto.ActionLogin, `{"success":true}`)
	m := NewManager(fake)

	require.NoError(t, m.Login(context.Background(), "alice", 7000))
	err := m.Login(context.Background(), "bob", 7001)
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyLoggedIn))
	assert.Equal(t, "alice", m.Identity())
	assert.Equal(t, 1, fake.Count(proto.ActionLogin))
}

func TestManager_Logout(t *testing.T) {
	fake := transporttest.New()
	fake.Reply(proto.ActionLogin, `{"success":true}`)
	fake.Reply(proto.ActionLogout, `{"success":true}`)
	m := NewManager(fake)

	require.NoError(t, m.Login(context.Background(), "alice", 7000))
	require.NoError(t, m.Logout(context.Background()))
	assert.False(t, m.LoggedIn())

	calls := fake.Calls(proto.ActionLogout)
	require.Len(t, calls, 1)
	assert.Equal(t, proto.UserPayload{Username: "alice"}, calls[0].Payload)

	// 未登录时登出为空操作
	require.NoError(t, m.Logout(context.Background()))
	assert.Equal(t, 1, fake.Count(proto.ActionLogout))
}

func TestManager_LogoutBestEffort(t *testing.T) {
	fake := transporttest.New()
	fake.Reply(proto.ActionLogin, `{"success":true}`)
	fake.Fail(proto.ActionLogout, apperrors.ErrConnection)
	m := NewManager(fake)

	require.NoError(t, m.Login(context.Background(), "alice", 7000))
	err := m.Logout(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrConnection))

	// 请求失败也已完成本地清理，可以重新登录
	assert.False(t, m.LoggedIn())
	assert.NoError(t, m.Login(context.Background(), "alice", 7000))
}
