package seed

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"friend-connect-backend/internal/features/graph/repository/memory"
)

const fixture = `
password: secret123
users:
  - username: alice
    interests: [Music, Books]
  - username: bob
  - username: carol
    password: carol-pass
  - username: dave
friendships:
  - [alice, bob]
  - [bob, carol]
requests:
  - {from: dave, to: alice}
`

func TestApplyCreatesGraph(t *testing.T) {
	ctx := context.Background()
	fx, err := Decode(strings.NewReader(fixture))
	require.NoError(t, err)

	store := memory.NewGraphStore()
	seeder := NewSeeder(store, bcrypt.MinCost, zerolog.Nop())

	res, err := seeder.Apply(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, Result{Users: 4, Friendships: 2, Requests: 1}, res)

	alice, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	bob, err := store.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	carol, err := store.GetUserByUsername(ctx, "carol")
	require.NoError(t, err)
	dave, err := store.GetUserByUsername(ctx, "dave")
	require.NoError(t, err)

	assert.Equal(t, []string{"Music", "Books"}, alice.Interests)
	assert.True(t, alice.IsFriend(bob.ID))
	assert.True(t, carol.IsFriend(bob.ID))
	assert.True(t, alice.HasRequestFrom(dave.ID))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(carol.PasswordHash), []byte("carol-pass")))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(bob.PasswordHash), []byte("secret123")))

	again, err := seeder.Apply(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 7}, again)
}

func TestApplyAcceptsPendingRequest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewGraphStore()
	seeder := NewSeeder(store, bcrypt.MinCost, zerolog.Nop())

	fx, err := Decode(strings.NewReader(`
password: secret123
users: [{username: alice}, {username: bob}]
requests: [{from: bob, to: alice}]
`))
	require.NoError(t, err)
	_, err = seeder.Apply(ctx, fx)
	require.NoError(t, err)

	fx.Requests = nil
	fx.Friendships = [][2]string{{"alice", "bob"}}
	res, err := seeder.Apply(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Friendships)

	alice, err := store.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, alice.Friends, 1)
	assert.Empty(t, alice.Requests)
}

func TestDecodeRejectsBadFixtures(t *testing.T) {
	cases := map[string]string{
		"unknown field":     "pasword: x\n",
		"bad username":      "password: secret123\nusers: [{username: 'no spaces'}]\n",
		"no password":       "users: [{username: alice}]\n",
		"unknown interest":  "password: secret123\nusers: [{username: alice, interests: [Knitting]}]\n",
		"unknown friend":    "password: secret123\nusers: [{username: alice}]\nfriendships: [[alice, bob]]\n",
		"self friendship":   "password: secret123\nusers: [{username: alice}]\nfriendships: [[alice, alice]]\n",
		"unknown requester": "password: secret123\nusers: [{username: alice}]\nrequests: [{from: bob, to: alice}]\n",
		"wrong pair length": "password: secret123\nusers: [{username: a1b}]\nfriendships: [[a1b]]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	fx, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, fx.Users)
}
