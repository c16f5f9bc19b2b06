package logger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// attrFormatter is the signature of slog.HandlerOptions.ReplaceAttr.
type attrFormatter func(groups []string, a slog.Attr) slog.Attr

/*
chain returns formatter which applies "fs" in order. Nil formatters are
skipped, nil is returned when nothing is left.
*/
func chain(fs ...attrFormatter) attrFormatter {
	var active []attrFormatter
	for _, f := range fs {
		if f != nil {
			active = append(active, f)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		for _, f := range active {
			a = f(groups, a)
		}
		return a
	}
}

/*
timeFormatter formats the record time with Go time layout "layout". Empty
layout keeps the handler default, "none" drops the time.
*/
func timeFormatter(layout string) attrFormatter {
	switch layout {
	case "":
		return nil
	case "none":
		return func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) != 0 || a.Key != slog.TimeKey {
			return a
		}
		if t := a.Value.Time(); !t.IsZero() {
			a.Value = slog.StringValue(t.Format(layout))
		}
		return a
	}
}

// dataAsJSON renders structured Data values as JSON in the text output.
func dataAsJSON(groups []string, a slog.Attr) slog.Attr {
	if a.Key != DataKey || a.Value.Kind() != slog.KindAny {
		return a
	}
	if b, err := json.Marshal(a.Value.Any()); err == nil {
		a.Value = slog.StringValue(string(b))
	}
	return a
}

/*
walletAttrs keeps only the level, the message and the error so the output
is readable for the CLI user.
*/
func walletAttrs(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey, slog.MessageKey, ErrorKey:
		return a
	}
	return slog.Attr{}
}

/*
ecsAttrs maps the well known attributes to the Elastic Common Schema fields.
Domain attributes without ECS counterpart go under "labels". Only top level
attributes are mapped, members of groups (including the ones returned here)
are kept as they are.
*/
func ecsAttrs(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.MessageKey:
		return slog.String("message", a.Value.String())
	case slog.SourceKey:
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		return slog.Group("log", slog.Group("origin",
			slog.String("function", shortFuncName(src.Function)),
			slog.Group("file", slog.String("name", src.File), slog.Int("line", src.Line)),
		))
	case ErrorKey:
		return slog.Group("error", slog.Any("message", a.Value.Any()))
	case AccountKey:
		return slog.Group("user", slog.Any("name", a.Value))
	case MethodKey:
		return slog.Group("event", slog.Any("action", a.Value))
	case AppchainIDKey, EpochKey:
		return slog.Group("labels", slog.Any(a.Key, a.Value))
	case DataKey:
		// "data: 42" and "data: {...}" in the same index would conflict,
		// so the value is nested under its type name.
		return slog.Group(DataKey, slog.Any(typeName(a.Value), a.Value))
	}
	return a
}

// typeName returns name of the type of "v" usable as JSON key.
func typeName(v slog.Value) string {
	if k := v.Kind(); k != slog.KindAny && k != slog.KindLogValuer {
		return k.String()
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", v.Any()), "*")
	if name == "string" {
		return slog.KindString.String()
	}
	return strings.ReplaceAll(name, ".", "_")
}

/*
shortFuncName strips the package path from the function name ie
"github.com/octopus-network/relay-client/registry.(*Reader).Refresh"
becomes "(*Reader).Refresh".
*/
func shortFuncName(fn string) string {
	_, fn = path.Split(fn)
	if _, after, ok := strings.Cut(fn, "."); ok {
		return after
	}
	return fn
}
