package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_timeFormatter(t *testing.T) {
	now := time.Now()

	require.Nil(t, timeFormatter(""))

	t.Run("none", func(t *testing.T) {
		f := timeFormatter("none")
		require.Equal(t, slog.Attr{}, f(nil, slog.Time(slog.TimeKey, now)))
		// time attributes of the record are not touched
		require.True(t, f(nil, slog.Time("observed_at", now)).Equal(slog.Time("observed_at", now)))
		require.True(t, f([]string{"g"}, slog.Time(slog.TimeKey, now)).Equal(slog.Time(slog.TimeKey, now)))
	})

	t.Run("layout", func(t *testing.T) {
		f := timeFormatter(time.Kitchen)
		require.Equal(t, now.Format(time.Kitchen), f(nil, slog.Time(slog.TimeKey, now)).Value.String())
		require.Equal(t, slog.Time(slog.TimeKey, time.Time{}), f(nil, slog.Time(slog.TimeKey, time.Time{})))
	})
}

func Test_chain(t *testing.T) {
	add := func(n int64) attrFormatter {
		return func(groups []string, a slog.Attr) slog.Attr { return slog.Int64(a.Key, a.Value.Int64()+n) }
	}
	var testCases = []struct {
		fs   []attrFormatter
		want int64
	}{
		{fs: []attrFormatter{add(1)}, want: 1},
		{fs: []attrFormatter{add(1), nil, add(2)}, want: 3},
		{fs: []attrFormatter{add(1), add(2), add(4), add(8)}, want: 15},
	}
	for _, tc := range testCases {
		f := chain(tc.fs...)
		require.NotNil(t, f)
		require.EqualValues(t, tc.want, f(nil, slog.Int64("n", 0)).Value.Int64())
	}

	require.Nil(t, chain())
	require.Nil(t, chain(nil, nil))
}

func Test_walletAttrs(t *testing.T) {
	for _, a := range []slog.Attr{slog.String(slog.MessageKey, "msg"), slog.Any(ErrorKey, errors.New("boom")), slog.Any(slog.LevelKey, slog.LevelWarn)} {
		require.Equal(t, a.Key, walletAttrs(nil, a).Key)
	}
	for _, a := range []slog.Attr{AppchainID(3), Method("staking"), slog.Time(slog.TimeKey, time.Now())} {
		require.Equal(t, slog.Attr{}, walletAttrs(nil, a))
	}
}

func Test_ecsAttrs(t *testing.T) {
	var testCases = []struct {
		attr  slog.Attr
		group string
		key   string
	}{
		{attr: Account("alice.testnet"), group: "user", key: "name"},
		{attr: Error(errors.New("boom")), group: "error", key: "message"},
		{attr: Method("get_appchains"), group: "event", key: "action"},
		{attr: AppchainID(2), group: "labels", key: AppchainIDKey},
		{attr: Epoch(4), group: "labels", key: EpochKey},
		{attr: Data("sample"), group: DataKey, key: "String"},
		{attr: Data(42), group: DataKey, key: "Int64"},
		{attr: Data(&LogConfiguration{}), group: DataKey, key: "logger_LogConfiguration"},
	}
	for _, tc := range testCases {
		a := ecsAttrs(nil, tc.attr)
		require.Equal(t, tc.group, a.Key, tc.attr.Key)
		require.Equal(t, tc.key, a.Value.Group()[0].Key, tc.attr.Key)
	}

	// unknown attributes are left as is
	a := slog.String("foo", "bar")
	require.True(t, ecsAttrs(nil, a).Equal(a))

	// group members are left as is, otherwise "labels" would be wrapped again
	a = AppchainID(2)
	require.True(t, ecsAttrs([]string{"labels"}, a).Equal(a))
}

func Test_shortFuncName(t *testing.T) {
	require.Equal(t, "(*Reader).Refresh", shortFuncName("github.com/octopus-network/relay-client/registry.(*Reader).Refresh"))
	require.Equal(t, "newBaseCmd.func1", shortFuncName("github.com/octopus-network/relay-client/cli/octopus/cmd.newBaseCmd.func1"))
	require.Equal(t, "main", shortFuncName("main"))
}

func Test_New(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		log, err := New(&LogConfiguration{Format: "xml", OutputPath: "discard"})
		require.EqualError(t, err, `unknown log format "xml"`)
		require.Nil(t, log)
	})

	t.Run("level filter", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log, err := New(LogConfiguration{Level: "warn", Format: "wallet"}.WithWriter(buf))
		require.NoError(t, err)
		log.Info("not shown")
		log.Warn("shown", AppchainID(1), Error(errors.New("oops")))
		require.NotContains(t, buf.String(), "not shown")
		require.Contains(t, buf.String(), "msg=shown")
		require.Contains(t, buf.String(), "err=oops")
		require.NotContains(t, buf.String(), AppchainIDKey)
	})

	t.Run("ecs", func(t *testing.T) {
		buf := &bytes.Buffer{}
		log, err := New(LogConfiguration{Format: "ecs"}.WithWriter(buf))
		require.NoError(t, err)
		log.Info("listed", Method("get_appchains"), AppchainID(7), Epoch(3))

		var rec struct {
			Message string
			Event   struct{ Action string }
			Labels  struct {
				AppchainID int    `json:"appchain_id"`
				Epoch      uint64 `json:"epoch"`
			}
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), buf.String())
		require.Equal(t, "listed", rec.Message)
		require.Equal(t, "get_appchains", rec.Event.Action)
		require.Equal(t, 7, rec.Labels.AppchainID)
		require.EqualValues(t, 3, rec.Labels.Epoch)

		// attributes inside groups are not mapped
		buf.Reset()
		log.WithGroup("req").Info("grouped", AppchainID(8))
		var grp struct {
			Req map[string]any
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &grp), buf.String())
		require.EqualValues(t, 8, grp.Req[AppchainIDKey])
	})

	t.Run("nil config", func(t *testing.T) {
		log, err := New(nil)
		require.NoError(t, err)
		require.NotNil(t, log)
	})
}
