package roster

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/hri/internal/availability"
	"github.com/dyluth/hri/internal/filter"
	"github.com/dyluth/hri/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *blackboard.Client {
	mr := miniredis.RunT(t)

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func observe(t *testing.T, client *blackboard.Client, frames ...[]string) {
	t.Helper()
	m := availability.NewManager(client, nil)
	for _, frame := range frames {
		_, err := m.HandlePersons(context.Background(), frame)
		require.NoError(t, err)
	}
}

func TestListAvailability(t *testing.T) {
	ctx := context.Background()

	t.Run("empty blackboard - default format", func(t *testing.T) {
		client := setupClient(t)

		var buf bytes.Buffer
		require.NoError(t, ListAvailability(ctx, client, "test-instance", OutputFormatDefault, nil, &buf))
		assert.Contains(t, buf.String(), "No persons observed for instance 'test-instance'")
	})

	t.Run("table lists persons sorted", func(t *testing.T) {
		client := setupClient(t)
		observe(t, client, []string{"bob", "ann"}, []string{"ann"})

		var buf bytes.Buffer
		require.NoError(t, ListAvailability(ctx, client, "test-instance", OutputFormatDefault, nil, &buf))

		output := buf.String()
		assert.Contains(t, output, "Availability for instance 'test-instance'")
		assert.Contains(t, output, "2 persons found")
		assert.Less(t, strings.Index(output, "ann"), strings.Index(output, "bob"))
		assert.Contains(t, output, "0.60 ######....")
		assert.Contains(t, output, "0.40 ####......")
	})

	t.Run("jsonl with filters", func(t *testing.T) {
		client := setupClient(t)
		observe(t, client, []string{"bob", "ann"}, []string{"ann"})

		present := true
		var buf bytes.Buffer
		err := ListAvailability(ctx, client, "test-instance", OutputFormatJSONL, &filter.Criteria{Present: &present}, &buf)
		require.NoError(t, err)

		var records []blackboard.AvailabilityRecord
		scanner := bufio.NewScanner(&buf)
		for scanner.Scan() {
			var rec blackboard.AvailabilityRecord
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
			records = append(records, rec)
		}
		require.Len(t, records, 1)
		assert.Equal(t, "ann", records[0].PersonID)
		assert.True(t, records[0].Present)
	})

	t.Run("time window excludes older records", func(t *testing.T) {
		client := setupClient(t)
		observe(t, client, []string{"ann"})

		future := time.Now().Add(time.Hour).UnixMilli()
		var buf bytes.Buffer
		err := ListAvailability(ctx, client, "test-instance", OutputFormatJSONL, &filter.Criteria{SinceTimestampMs: future}, &buf)
		require.NoError(t, err)
		assert.Empty(t, buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		client := setupClient(t)
		err := ListAvailability(ctx, client, "test-instance", OutputFormat("xml"), nil, &bytes.Buffer{})
		assert.ErrorContains(t, err, "unknown output format: xml")
	})
}

func TestGetPerson(t *testing.T) {
	ctx := context.Background()
	client := setupClient(t)
	observe(t, client, []string{"ann"})

	var buf bytes.Buffer
	require.NoError(t, GetPerson(ctx, client, "ann", &buf))

	var rec blackboard.AvailabilityRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "ann", rec.PersonID)
	assert.Equal(t, 0.5, rec.Score)

	err := GetPerson(ctx, client, "zed", &bytes.Buffer{})
	assert.True(t, IsNotFound(err))
	assert.EqualError(t, err, "person 'zed' has never been observed")
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("jsonl")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSONL, f)

	_, err = ParseOutputFormat("json")
	assert.Error(t, err)
}

func TestFormatScore(t *testing.T) {
	assert.Equal(t, "0.00 ..........", formatScore(0))
	assert.Equal(t, "1.00 ##########", formatScore(1))
	assert.Equal(t, "0.30 ###.......", formatScore(0.3))
}
