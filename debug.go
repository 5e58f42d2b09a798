package dispatchz

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Level is a bit mask selecting which trace categories reach the Sink.
type Level uint8

// Trace categories.
const (
	DebugNone        Level = 0
	DebugEvents      Level = 1 // every Run and Filter call and its outcome
	DebugCalls       Level = 2 // every callback invocation
	DebugBinds       Level = 4 // every Bind
	DebugInteraction Level = 8 // every call into the Engine API
	DebugAll         Level = DebugEvents | DebugCalls | DebugBinds | DebugInteraction
)

var levelNames = []struct {
	level Level
	name  string
}{
	{DebugEvents, "events"},
	{DebugCalls, "calls"},
	{DebugBinds, "binds"},
	{DebugInteraction, "interaction"},
}

// Has reports whether every category in c is enabled in l.
func (l Level) Has(c Level) bool {
	return c != DebugNone && l&c == c
}

func (l Level) String() string {
	switch l {
	case DebugNone:
		return "none"
	case DebugAll:
		return "all"
	}
	var parts []string
	for _, n := range levelNames {
		if l&n.level != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return strconv.Itoa(int(l))
	}
	return strings.Join(parts, "|")
}

// ParseLevel accepts a numeric mask ("15") or a list of category names
// separated by commas or pipes ("events,calls", "all", "none").
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DebugNone, nil
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		if Level(n)&^DebugAll != 0 {
			return DebugNone, fmt.Errorf("debug level %d out of range", n)
		}
		return Level(n), nil
	}

	var level Level
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' }) {
		switch name := strings.ToLower(strings.TrimSpace(part)); name {
		case "none":
		case "all":
			level |= DebugAll
		default:
			found := false
			for _, n := range levelNames {
				if n.name == name {
					level |= n.level
					found = true
					break
				}
			}
			if !found {
				return DebugNone, fmt.Errorf("unknown debug category %q", name)
			}
		}
	}
	return level, nil
}

// Event is one structured trace record.
type Event struct {
	Category Level
	Time     time.Time
	Op       string // bind, unbind, run, filter, clear, call, debug
	Key      Key
	Priority int
	Duration time.Duration
	Message  string
	Err      error
}

// Sink receives trace events. Implementations may panic; the Engine
// recovers and the panic never reaches the dispatching caller.
type Sink interface {
	Record(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Record calls f(ev).
func (f SinkFunc) Record(ev Event) {
	f(ev)
}

// NopSink discards every event.
type NopSink struct{}

// Record does nothing.
func (NopSink) Record(Event) {}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

// Record forwards ev to every sink. A panicking sink does not stop the
// remaining ones.
func (m MultiSink) Record(ev Event) {
	for _, s := range m {
		safeRecord(s, ev)
	}
}

const unprintable = "tried to record debug output, but ran into an unprintable"

// safeRecord reports false if the sink panicked.
func safeRecord(s Sink, ev Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	s.Record(ev)
	return true
}

// exportDepth bounds how deep export descends into nested values.
const exportDepth = 8

// export renders v for trace messages in %#v style. Maps and slices that
// contain themselves are cut with "..." instead of recursing forever.
func export(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = "..."
		}
	}()
	var b strings.Builder
	exportValue(&b, reflect.ValueOf(v), 0, make(map[exportRef]bool))
	return b.String()
}

// exportRef identifies a map or slice backing array on the current path.
type exportRef struct {
	kind reflect.Kind
	ptr  uintptr
}

func exportValue(b *strings.Builder, rv reflect.Value, depth int, path map[exportRef]bool) {
	if !rv.IsValid() {
		b.WriteString("<nil>")
		return
	}
	if depth > exportDepth {
		b.WriteString("...")
		return
	}
	if rv.CanInterface() {
		if _, ok := rv.Interface().(fmt.GoStringer); ok {
			fmt.Fprintf(b, "%#v", rv.Interface())
			return
		}
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			b.WriteString("interface {}(nil)")
			return
		}
		exportValue(b, rv.Elem(), depth, path)
	case reflect.Pointer:
		if rv.IsNil() {
			fmt.Fprintf(b, "(%s)(nil)", rv.Type())
			return
		}
		switch rv.Elem().Kind() {
		case reflect.Struct, reflect.Array, reflect.Slice, reflect.Map:
			if depth == 0 {
				b.WriteByte('&')
				exportValue(b, rv.Elem(), depth+1, path)
				return
			}
		}
		fmt.Fprintf(b, "(%s)(%#x)", rv.Type(), rv.Pointer())
	case reflect.Map:
		if rv.IsNil() {
			fmt.Fprintf(b, "%s(nil)", rv.Type())
			return
		}
		ref := exportRef{reflect.Map, rv.Pointer()}
		if path[ref] {
			b.WriteString("...")
			return
		}
		path[ref] = true
		defer delete(path, ref)

		entries := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			var entry strings.Builder
			exportValue(&entry, iter.Key(), depth+1, path)
			entry.WriteByte(':')
			exportValue(&entry, iter.Value(), depth+1, path)
			entries = append(entries, entry.String())
		}
		slices.Sort(entries)

		b.WriteString(rv.Type().String())
		b.WriteByte('{')
		b.WriteString(strings.Join(entries, ", "))
		b.WriteByte('}')
	case reflect.Slice:
		if rv.IsNil() {
			fmt.Fprintf(b, "%s(nil)", rv.Type())
			return
		}
		if rv.Len() > 0 {
			ref := exportRef{reflect.Slice, rv.Pointer()}
			if path[ref] {
				b.WriteString("...")
				return
			}
			path[ref] = true
			defer delete(path, ref)
		}
		exportElems(b, rv, depth, path)
	case reflect.Array:
		exportElems(b, rv, depth, path)
	case reflect.Struct:
		b.WriteString(rv.Type().String())
		b.WriteByte('{')
		for i := 0; i < rv.NumField(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(rv.Type().Field(i).Name)
			b.WriteByte(':')
			exportValue(b, rv.Field(i), depth+1, path)
		}
		b.WriteByte('}')
	case reflect.String:
		b.WriteString(strconv.Quote(rv.String()))
	case reflect.Bool:
		b.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		fmt.Fprintf(b, "%#x", rv.Uint())
	case reflect.Float32, reflect.Float64:
		b.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		fmt.Fprintf(b, "%v", rv.Complex())
	default:
		fmt.Fprintf(b, "(%s)(%#x)", rv.Type(), rv.Pointer())
	}
}

func exportElems(b *strings.Builder, rv reflect.Value, depth int, path map[exportRef]bool) {
	b.WriteString(rv.Type().String())
	b.WriteByte('{')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		exportValue(b, rv.Index(i), depth+1, path)
	}
	b.WriteByte('}')
}
