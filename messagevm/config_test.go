// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package messagevm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name        string
		configBytes string
		expected    Config
		expectedErr bool
	}{
		{
			name:        "empty",
			configBytes: "",
			expected:    DefaultConfig(),
		},
		{
			name:        "overrides",
			configBytes: `{"mempoolSize":8,"buildInterval":"250ms"}`,
			expected: Config{
				MempoolSize:   8,
				MaxBlockTxs:   defaultMaxBlockTxs,
				BuildInterval: Duration(250 * time.Millisecond),
			},
		},
		{
			name:        "zero mempool",
			configBytes: `{"mempoolSize":0}`,
			expectedErr: true,
		},
		{
			name:        "block too large",
			configBytes: `{"maxBlockTxs":129}`,
			expectedErr: true,
		},
		{
			name:        "negative interval",
			configBytes: `{"buildInterval":"-1s"}`,
			expectedErr: true,
		},
		{
			name:        "bad duration",
			configBytes: `{"buildInterval":"soon"}`,
			expectedErr: true,
		},
		{
			name:        "not json",
			configBytes: `mempoolSize=8`,
			expectedErr: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			config, err := ParseConfig([]byte(test.configBytes))
			if test.expectedErr {
				require.Error(err)
				return
			}
			require.NoError(err)
			require.Equal(test.expected, config)
		})
	}
}

func TestMempoolOrder(t *testing.T) {
	require := require.New(t)
	m := newMempool(4)

	_, err := m.Next()
	require.ErrorIs(err, errEmptyMempool)

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(m.Add(WriteTx{Author: user1, Text: text}))
	}
	require.Equal(3, m.Len())

	select {
	case <-m.Pending():
	default:
		require.FailNow("should have been a pending signal")
	}

	require.Equal([]WriteTx{{Author: user1, Text: "a"}, {Author: user1, Text: "b"}}, m.Take(2))
	require.Equal([]WriteTx{{Author: user1, Text: "c"}}, m.Take(2))
	require.Empty(m.Take(2))
}

func TestMempoolRequeue(t *testing.T) {
	require := require.New(t)
	m := newMempool(2)

	require.NoError(m.Add(WriteTx{Author: user1, Text: "a"}))
	require.NoError(m.Add(WriteTx{Author: user1, Text: "b"}))
	taken := m.Take(2)

	// Drain the signal from Add
	<-m.Pending()

	require.NoError(m.Add(WriteTx{Author: user1, Text: "c"}))
	<-m.Pending()

	m.Requeue(taken)
	select {
	case <-m.Pending():
	default:
		require.FailNow("requeue should signal pending txs")
	}

	// Requeued txs go first and may exceed the size
	require.Equal(3, m.Len())
	require.Equal([]WriteTx{
		{Author: user1, Text: "a"},
		{Author: user1, Text: "b"},
		{Author: user1, Text: "c"},
	}, m.Take(3))
}
