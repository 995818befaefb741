package pcaptypes

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLiveInterface(t *testing.T) {
	opts := LiveOptions{Promiscuous: true, SnapLen: 1500, ReadTimeout: time.Second}
	iface := CreateLiveInterface("eth0", opts)

	require.NotNil(t, iface)
	assert.Equal(t, "eth0", iface.Name())

	live, ok := iface.(*liveInterface)
	require.True(t, ok, "Should be a liveInterface")
	assert.Equal(t, opts, live.opts)
}

func TestOfflineInterface_Name(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		filename string
	}{
		{name: "Standard pcap file", filename: "capture.pcap"},
		{name: "File with path", filename: "subdir/capture.pcap"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fullPath := filepath.Join(tmpDir, tt.filename)
			require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))

			file, err := os.Create(fullPath)
			require.NoError(t, err)
			defer file.Close()

			iface := CreateOfflineInterface(file)
			assert.Equal(t, fullPath, iface.Name())
		})
	}
}

func TestOfflineInterface_NilFile(t *testing.T) {
	iface := &offlineInterface{}

	assert.Equal(t, "offline", iface.Name())
	assert.Error(t, iface.SetHandle())
}

func TestHandle_NotActivated(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.pcap")
	file, err := os.Create(tmpFile)
	require.NoError(t, err)
	defer file.Close()

	for _, iface := range []PcapInterface{
		CreateLiveInterface("test-device", LiveOptions{}),
		CreateOfflineInterface(file),
	} {
		handle, err := iface.Handle()
		assert.Nil(t, handle)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "interface has no handle")
	}
}

func TestOfflineInterface_SetHandle_EmptyFileFails(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "empty.pcap")
	file, err := os.Create(tmpFile)
	require.NoError(t, err)
	defer file.Close()

	iface := CreateOfflineInterface(file)
	assert.Error(t, iface.SetHandle(), "an empty file has no pcap header")
}
