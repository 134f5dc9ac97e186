package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxhall/voxhall/internal/domain"
)

func TestNewStartRequest_Validation(t *testing.T) {
	_, err := NewStartRequest("", "u1", nil)
	require.Error(t, err)

	_, err = NewStartRequest("hello", "", nil)
	require.Error(t, err)

	req, err := NewStartRequest("hello", "u1", []domain.Attachment{{Name: "a.txt"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", req.Query)
	assert.Len(t, req.Attachments, 1)
}

func TestNewContinueRequest_Validation(t *testing.T) {
	_, err := NewContinueRequest("hello", "", "u1", nil)
	require.Error(t, err)

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindBadRequest, te.Kind)

	req, err := NewContinueRequest("hello", "ext-1", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, "ext-1", req.ExternalID)
}

func TestStream_ExternalIDCallback(t *testing.T) {
	s := NewStream()

	var got []string
	s.OnExternalID(func(id string) { got = append(got, id) })

	s.SetExternalID("ext-1")
	s.SetExternalID("ext-2") // late update ignored

	assert.Equal(t, []string{"ext-1"}, got)
	assert.Equal(t, "ext-1", s.ExternalID())

	// registered after resolution: fires immediately
	var late string
	s.OnExternalID(func(id string) { late = id })
	assert.Equal(t, "ext-1", late)
}

func TestStream_IdentityCallback(t *testing.T) {
	s := NewStream()

	var got domain.ConversationIdentity
	s.OnIdentityResolved(func(p domain.ConversationIdentity) { got = p })

	s.ResolveIdentity(domain.ConversationIdentity{ExternalID: "ext-1", InternalID: "int-1"})
	assert.Equal(t, "int-1", got.InternalID)

	// second pairing is a no-op
	s.ResolveIdentity(domain.ConversationIdentity{ExternalID: "ext-1", InternalID: "other"})
	assert.Equal(t, "int-1", got.InternalID)
}

func TestStream_CloseDeliversErr(t *testing.T) {
	s := NewStream()
	s.Emit("a")
	s.Close(&Error{Kind: KindRemote, Message: "boom"})

	var frags []string
	for f := range s.Fragments() {
		frags = append(frags, f)
	}
	assert.Equal(t, []string{"a"}, frags)
	require.Error(t, s.Err())
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	te := &Error{Kind: KindTimeout, Message: "slow"}
	assert.Same(t, te, Normalize(te))

	got := Normalize(errors.New("weird upstream shape"))
	assert.Equal(t, KindRemote, got.Kind)
	assert.False(t, got.Retryable)
}
