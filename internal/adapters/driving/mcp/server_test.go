package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil ranker returns error", func(t *testing.T) {
		ports := &Ports{Documents: &mockDocumentStore{}}
		server, err := NewServer(ports)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingRanker)
	})

	t.Run("nil document store returns error", func(t *testing.T) {
		ports := &Ports{Ranker: &mockRanker{}}
		server, err := NewServer(ports)
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingDocumentStore)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		ports := &Ports{
			Ranker:    &mockRanker{},
			Documents: &mockDocumentStore{},
		}
		server, err := NewServer(ports)
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("required ports only is valid", func(t *testing.T) {
		ports := &Ports{
			Ranker:    &mockRanker{},
			Documents: &mockDocumentStore{},
		}
		assert.NoError(t, ports.Validate())
	})

	t.Run("all ports is valid", func(t *testing.T) {
		ports := &Ports{
			Ranker:    &mockRanker{},
			Documents: &mockDocumentStore{},
			Generator: &mockGenerator{},
			Questions: &mockLedger{},
			Sections:  &mockSectionStore{},
		}
		assert.NoError(t, ports.Validate())
	})
}
