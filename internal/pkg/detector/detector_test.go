package detector

import (
	"testing"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/types"
	"github.com/stretchr/testify/assert"
)

const window = 15 * time.Second

func TestSYNFlood_AboveThresholdMarksEverySYN(t *testing.T) {
	attacker := repeat(151, func(i int) *types.PacketRecord {
		return syn("10.0.0.5", uint16(1000+i), now.Add(-time.Second))
	})
	quiet := repeat(150, func(i int) *types.PacketRecord {
		return syn("10.0.0.6", 80, now.Add(-time.Second))
	})
	records := append(append([]*types.PacketRecord{}, attacker...), quiet...)

	marked := SYNFlood{Threshold: 150, Window: window}.Detect(records, now)

	assert.Equal(t, 151, marked)
	assert.Equal(t, 151, countSuspicious(attacker))
	assert.Equal(t, 0, countSuspicious(quiet), "exactly at threshold is not a flood")
	for _, r := range attacker {
		assert.False(t, r.IsMalicious)
	}
}

func TestSYNFlood_IgnoresSYNACKAndOldRecords(t *testing.T) {
	records := repeat(100, func(i int) *types.PacketRecord {
		return syn("10.0.0.5", 80, now)
	})
	records = append(records, repeat(100, func(i int) *types.PacketRecord {
		return ack("10.0.0.5", 80, now)
	})...)
	records = append(records, repeat(100, func(i int) *types.PacketRecord {
		return syn("10.0.0.5", 80, now.Add(-time.Minute))
	})...)

	marked := SYNFlood{Threshold: 150, Window: window}.Detect(records, now)

	assert.Equal(t, 0, marked)
	assert.Equal(t, 0, countSuspicious(records))
}

func TestSYNFlood_FutureTimestampsAreInWindow(t *testing.T) {
	records := repeat(3, func(i int) *types.PacketRecord {
		return syn("10.0.0.5", 80, now.Add(time.Hour))
	})

	marked := SYNFlood{Threshold: 2, Window: window}.Detect(records, now)
	assert.Equal(t, 3, marked)
}

func TestSYNFlood_WindowBoundaryIsInclusive(t *testing.T) {
	records := repeat(3, func(i int) *types.PacketRecord {
		return syn("10.0.0.5", 80, now.Add(-window))
	})

	marked := SYNFlood{Threshold: 2, Window: window}.Detect(records, now)
	assert.Equal(t, 3, marked)
}

func TestUDPFlood(t *testing.T) {
	records := repeat(151, func(i int) *types.PacketRecord {
		return udp("10.0.0.7", 53, now)
	})
	records = append(records, syn("10.0.0.7", 80, now))

	marked := UDPFlood{Threshold: 150, Window: window}.Detect(records, now)

	assert.Equal(t, 151, marked)
	assert.False(t, records[151].IsSuspicious, "TCP records are not counted or marked")
}

func TestPortScan_StrictlyGreaterThan(t *testing.T) {
	tests := []struct {
		name          string
		distinctPorts int
		wantMarked    bool
	}{
		{"five distinct ports", 5, false},
		{"six distinct ports", 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var records []*types.PacketRecord
			for p := 0; p < tt.distinctPorts; p++ {
				records = append(records, syn("10.0.0.8", uint16(20+p), now))
				// Repeats of the same port do not count twice.
				records = append(records, syn("10.0.0.8", uint16(20+p), now))
			}

			PortScan{Threshold: 5, Window: window}.Detect(records, now)

			for _, r := range records {
				assert.Equal(t, tt.wantMarked, r.IsSuspicious)
			}
		})
	}
}

func TestPortScan_MarksAllRecordsOfSource(t *testing.T) {
	var records []*types.PacketRecord
	for p := 0; p < 6; p++ {
		records = append(records, syn("10.0.0.8", uint16(20+p), now))
	}
	fromScanner := udp("10.0.0.8", 53, now.Add(-time.Hour))
	other := syn("10.0.0.9", 22, now)
	records = append(records, fromScanner, other)

	marked := PortScan{Threshold: 5, Window: window}.Detect(records, now)

	assert.Equal(t, 7, marked)
	assert.True(t, fromScanner.IsSuspicious, "non-TCP and out-of-window records of a scanner are marked")
	assert.False(t, other.IsSuspicious)
}

func TestPortScan_IgnoresRecordsWithoutPorts(t *testing.T) {
	var records []*types.PacketRecord
	for p := 0; p < 10; p++ {
		r := syn("10.0.0.8", uint16(20+p), now)
		r.DestinationPort = nil
		records = append(records, r)
	}

	assert.Equal(t, 0, PortScan{Threshold: 5, Window: window}.Detect(records, now))
}

func TestPingOfDeathV4_Boundary(t *testing.T) {
	atLimit := echoV4(65535)
	over := echoV4(65536)
	reply := echoV4(70000)
	reply.Transport = types.ICMPv4Message{Type: 0}

	marked := PingOfDeathV4{MaxLength: 65535}.Detect([]*types.PacketRecord{atLimit, over, reply}, now)

	assert.Equal(t, 1, marked)
	assert.False(t, atLimit.IsSuspicious)
	assert.False(t, atLimit.IsMalicious)
	assert.True(t, over.IsSuspicious)
	assert.True(t, over.IsMalicious)
	assert.False(t, reply.Flagged())
}

func TestPingOfDeathV6_UsesPayloadLength(t *testing.T) {
	// Total length is over the bound but the payload length is not.
	atLimit := echoV6(65535)
	over := echoV6(65536)

	marked := PingOfDeathV6{MaxLength: 65535}.Detect([]*types.PacketRecord{atLimit, over}, now)

	assert.Equal(t, 1, marked)
	assert.False(t, atLimit.Flagged())
	assert.True(t, over.IsMalicious)
	assert.True(t, over.IsSuspicious)
}

func TestPingOfDeath_IgnoresOtherVersion(t *testing.T) {
	v6AsV4 := echoV6(70000)
	assert.Equal(t, 0, PingOfDeathV4{MaxLength: 65535}.Detect([]*types.PacketRecord{v6AsV4}, now))

	v4AsV6 := echoV4(70000)
	assert.Equal(t, 0, PingOfDeathV6{MaxLength: 65535}.Detect([]*types.PacketRecord{v4AsV6}, now))
}

func TestFlagsAreNeverCleared(t *testing.T) {
	r := syn("10.0.0.5", 80, now)
	r.MarkMalicious()

	SYNFlood{Threshold: 150, Window: window}.Detect([]*types.PacketRecord{r}, now)
	PortScan{Threshold: 5, Window: window}.Detect([]*types.PacketRecord{r}, now)

	assert.True(t, r.IsSuspicious)
	assert.True(t, r.IsMalicious)
}

func TestMarkedCountsOnlyNewFlags(t *testing.T) {
	records := repeat(3, func(i int) *types.PacketRecord {
		return syn("10.0.0.5", uint16(i), now)
	})
	records[0].MarkSuspicious()

	assert.Equal(t, 2, SYNFlood{Threshold: 2, Window: window}.Detect(records, now))
}
