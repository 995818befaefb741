package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "flagged.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertFlagged_RoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 123, time.UTC)

	withPorts := &types.PacketRecord{
		IPVersion:     types.IPv4,
		SourceIP:      "10.0.0.5",
		DestinationIP: "10.0.0.1",
		Protocol:      types.ProtocolTCP,
		Timestamp:     ts,
		HeaderLength:  20,
		TotalLength:   40,
	}
	withPorts.SetPorts(40000, 80)
	withPorts.MarkSuspicious()

	text := "[binary payload]"
	icmp := &types.PacketRecord{
		IPVersion:            types.IPv4,
		SourceIP:             "192.0.2.9",
		DestinationIP:        "10.0.0.1",
		Protocol:             types.ProtocolICMP,
		Timestamp:            ts,
		HeaderLength:         20,
		TotalLength:          65632,
		ApplicationLayerText: &text,
	}
	icmp.MarkMalicious()

	require.NoError(t, s.InsertFlagged(ctx, []*types.PacketRecord{withPorts, icmp}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first
	assert.Equal(t, types.ProtocolICMP, got[0].Protocol)
	assert.Nil(t, got[0].SourcePort)
	require.NotNil(t, got[0].ApplicationLayerText)
	assert.Equal(t, text, *got[0].ApplicationLayerText)
	assert.True(t, got[0].IsMalicious)
	assert.Equal(t, 65632, got[0].TotalLength)

	assert.Equal(t, types.IPv4, got[1].IPVersion)
	assert.Equal(t, "10.0.0.5", got[1].SourceIP)
	src, dst := got[1].Ports()
	assert.Equal(t, uint16(40000), src)
	assert.Equal(t, uint16(80), dst)
	assert.True(t, got[1].IsSuspicious)
	assert.False(t, got[1].IsMalicious)
	assert.True(t, ts.Equal(got[1].Timestamp))
	assert.Nil(t, got[1].ApplicationLayerText)
}

func TestInsertFlagged_Empty(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.InsertFlagged(context.Background(), nil))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecent_Limit(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	batch := make([]*types.PacketRecord, 5)
	for i := range batch {
		batch[i] = &types.PacketRecord{IPVersion: types.IPv4, SourceIP: "10.0.0.5", DestinationIP: "10.0.0.1", Protocol: types.ProtocolUDP, TotalLength: i}
		batch[i].MarkSuspicious()
	}
	require.NoError(t, s.InsertFlagged(ctx, batch))

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].TotalLength)
	assert.Equal(t, 3, got[1].TotalLength)
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flagged.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	rec := &types.PacketRecord{IPVersion: types.IPv6, SourceIP: "2001:db8::5", DestinationIP: "2001:db8::1", Protocol: types.ProtocolICMPv6}
	rec.MarkMalicious()
	require.NoError(t, s.InsertFlagged(ctx, []*types.PacketRecord{rec}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
