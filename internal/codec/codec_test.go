package codec

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"identigraph/internal/domain"
	"identigraph/internal/repository"
	"identigraph/internal/service"
	"identigraph/internal/upstream"
)

func sampleReport() *service.CrawlReport {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &service.CrawlReport{
		ID:         "c0ffee",
		Seed:       domain.NewIdentityTarget(domain.PlatformEthereum, "0xABC"),
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Rounds:     2,
		StopReason: service.StopConverged,
		Stats:      repository.Stats{Identities: 2, Proofs: 1},
		Targets: []*service.TargetReport{
			{
				Target:     domain.NewIdentityTarget(domain.PlatformEthereum, "0xabc"),
				Round:      1,
				State:      service.TargetPartiallyFailed,
				Fetchers:   []domain.DataSource{domain.DataSourceNextID, domain.DataSourceSpaceID},
				Discovered: 1,
				Errors: []service.FetchError{{
					Source:  domain.DataSourceSpaceID,
					Kind:    upstream.KindTransportTimeout,
					Message: "deadline exceeded",
				}},
			},
			{
				Target: domain.NewENSTarget("alice.eth"),
				Round:  2,
				State:  service.TargetCompleted,
			},
		},
	}
}

func TestJSONExport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONCodec().Export(sampleReport(), &buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "converged", decoded["stop_reason"])
	assert.Len(t, decoded["targets"], 2)
	assert.Contains(t, buf.String(), `"kind": "transport_timeout"`)
}

func TestYAMLExportFlattensTargets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLCodec().Export(sampleReport(), &buf))

	var decoded yamlReport
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ethereum:0xabc", decoded.Seed)
	require.Len(t, decoded.Targets, 2)
	assert.Equal(t, domain.NewENSTarget("alice.eth").Key(), decoded.Targets[1].Target)
	assert.Equal(t, []string{"nextid", "space_id"}, decoded.Targets[0].Fetchers)
	assert.Equal(t, "transport_timeout", decoded.Targets[0].Errors[0].Kind)
	assert.Equal(t, 1, decoded.Stats.Proofs)
}

func TestParseSeeds(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		seeds, err := NewJSONCodec().Parse(strings.NewReader(`{"seeds": ["ethereum:0xABC", "vitalik.eth"]}`))
		require.NoError(t, err)
		require.Len(t, seeds, 2)
		assert.Equal(t, "ethereum:0xabc", seeds[0].Key())
		assert.True(t, seeds[1].IsNFT())
	})

	t.Run("yaml", func(t *testing.T) {
		seeds, err := NewYAMLCodec().Parse(strings.NewReader("seeds:\n  - twitter:Alice\n  - space_id:alice.bnb\n"))
		require.NoError(t, err)
		require.Len(t, seeds, 2)
		assert.Equal(t, "twitter:alice", seeds[0].Key())
	})

	t.Run("bad seed", func(t *testing.T) {
		_, err := NewYAMLCodec().Parse(strings.NewReader("seeds:\n  - nonsense\n"))
		assert.Error(t, err)
	})
}

func TestForFormat(t *testing.T) {
	for _, format := range []string{"json", "", "yaml", "YML"} {
		_, err := ForFormat(format)
		assert.NoError(t, err, format)
	}
	_, err := ForFormat("csv")
	assert.Error(t, err)
}
