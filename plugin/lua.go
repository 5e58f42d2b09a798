package plugin

import (
	"fmt"
	"math"
	"reflect"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/zoobzio/dispatchz"
)

// LuaRuntime executes init.lua entry points with gopher-lua.
//
// Each plugin gets its own Lua state with the base, table, string and math
// libraries, plus two globals:
//
//	hooks.bind(key, fn [, priority])   -> true
//	hooks.run(key, ...)                -> count
//	hooks.filter(key, value, ...)      -> value
//	hooks.clear([key])                 -> removed (all keys when key is nil)
//
//	plugin.name, plugin.path, plugin.version
//	plugin.log(message)
//
// Keys are strings, integers or arrays of those. Lua functions bound through
// hooks.bind stay tied to the plugin's state, which lives until Close.
//
// gopher-lua states are not goroutine safe; the runtime follows the engine's
// single thread model.
type LuaRuntime struct {
	engine *dispatchz.Engine
	logger zerolog.Logger
	states []*lua.LState
}

// NewLuaRuntime creates a runtime binding plugin callbacks on engine.
func NewLuaRuntime(engine *dispatchz.Engine, logger zerolog.Logger) *LuaRuntime {
	return &LuaRuntime{
		engine: engine,
		logger: logger,
	}
}

// Exec runs the plugin's entry point in a fresh state.
func (r *LuaRuntime) Exec(info Info) error {
	L := newState()
	r.install(L, info)

	// Kept even on failure: callbacks bound before the error still use it.
	r.states = append(r.states, L)

	if err := doFile(L, info.Path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEntryPoint, info.Name, err)
	}
	return nil
}

// Close closes every plugin state. Callbacks bound by plugins fail from
// then on, so clear the engine first if it outlives the runtime.
func (r *LuaRuntime) Close() error {
	for _, L := range r.states {
		L.Close()
	}
	r.states = nil
	return nil
}

func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// No file access from plugins.
	for _, name := range []string{"dofile", "loadfile"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func doFile(L *lua.LState, path string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("lua panic: %v", rec)
		}
	}()
	return L.DoFile(path)
}

func (r *LuaRuntime) install(L *lua.LState, info Info) {
	logger := r.logger.With().Str("plugin", info.Name).Logger()

	hooks := L.NewTable()
	L.SetField(hooks, "bind", L.NewFunction(r.luaBind))
	L.SetField(hooks, "run", L.NewFunction(r.luaRun))
	L.SetField(hooks, "filter", L.NewFunction(r.luaFilter))
	L.SetField(hooks, "clear", L.NewFunction(r.luaClear))
	L.SetGlobal("hooks", hooks)

	self := L.NewTable()
	L.SetField(self, "name", lua.LString(info.Name))
	L.SetField(self, "path", lua.LString(info.Path))
	if info.Manifest != nil {
		L.SetField(self, "version", lua.LString(info.Manifest.Version))
	}
	L.SetField(self, "log", L.NewFunction(func(L *lua.LState) int {
		logger.Info().Msg(L.CheckString(1))
		return 0
	}))
	L.SetGlobal("plugin", self)
}

func (r *LuaRuntime) luaBind(L *lua.LState) int {
	key := keyFromLua(L.CheckAny(1))
	fn := L.CheckFunction(2)
	priority := L.OptInt(3, dispatchz.DefaultPriority)

	if _, err := r.engine.Bind(key, luaCallback(L, fn), dispatchz.WithPriority(priority)); err != nil {
		L.RaiseError("hooks.bind: %s", err.Error())
		return 0
	}
	L.Push(lua.LTrue)
	return 1
}

func (r *LuaRuntime) luaRun(L *lua.LState) int {
	key := keyFromLua(L.CheckAny(1))
	count, err := r.engine.Run(key, argsFromLua(L, 2)...)
	if err != nil {
		L.RaiseError("hooks.run: %s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(count))
	return 1
}

func (r *LuaRuntime) luaFilter(L *lua.LState) int {
	key := keyFromLua(L.CheckAny(1))
	value, err := r.engine.Filter(key, fromLua(L.Get(2)), argsFromLua(L, 3)...)
	if err != nil {
		L.RaiseError("hooks.filter: %s", err.Error())
		return 0
	}
	L.Push(toLua(L, value))
	return 1
}

func (r *LuaRuntime) luaClear(L *lua.LState) int {
	if L.Get(1) == lua.LNil {
		L.Push(lua.LNumber(r.engine.ClearAll()))
		return 1
	}

	removed, err := r.engine.Clear(keyFromLua(L.Get(1)))
	if err != nil {
		L.RaiseError("hooks.clear: %s", err.Error())
		return 0
	}
	L.Push(lua.LNumber(removed))
	return 1
}

// luaCallback wraps a Lua function as a Callback running in L. Only the
// first Lua result is kept.
func luaCallback(L *lua.LState, fn *lua.LFunction) dispatchz.Callback {
	return func(args ...any) (any, error) {
		top := L.GetTop()
		defer L.SetTop(top)

		L.Push(fn)
		for _, a := range args {
			L.Push(toLua(L, a))
		}
		if err := L.PCall(len(args), 1, nil); err != nil {
			return nil, err
		}
		return fromLua(L.Get(-1)), nil
	}
}

// keyFromLua converts a hook key. Arrays become []any so that each element
// is validated by the engine.
func keyFromLua(v lua.LValue) any {
	if t, ok := v.(*lua.LTable); ok {
		keys := make([]any, 0, t.Len())
		for i := 1; i <= t.Len(); i++ {
			keys = append(keys, keyFromLua(t.RawGetInt(i)))
		}
		return keys
	}
	return fromLua(v)
}

func argsFromLua(L *lua.LState, from int) []any {
	top := L.GetTop()
	if top < from {
		return nil
	}
	args := make([]any, 0, top-from+1)
	for i := from; i <= top; i++ {
		args = append(args, fromLua(L.Get(i)))
	}
	return args
}

// fromLua converts a Lua value to Go. Integral numbers become int, tables
// become []any when they are sequences and map[string]any otherwise, and
// userdata gives back the Go value it wraps.
func fromLua(v lua.LValue) any {
	return fromLuaVisited(v, make(map[*lua.LTable]bool))
}

func fromLuaVisited(v lua.LValue, visited map[*lua.LTable]bool) any {
	switch lv := v.(type) {
	case nil:
		return nil
	case lua.LBool:
		return bool(lv)
	case lua.LNumber:
		f := float64(lv)
		if f == math.Trunc(f) && f > math.MinInt64 && f < math.MaxInt64 {
			return int(f)
		}
		return f
	case lua.LString:
		return string(lv)
	case *lua.LNilType:
		return nil
	case *lua.LUserData:
		return lv.Value
	case *lua.LTable:
		if visited[lv] {
			return nil
		}
		visited[lv] = true
		return tableFromLua(lv, visited)
	default:
		return v
	}
}

func tableFromLua(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	size := 0
	t.ForEach(func(_, _ lua.LValue) { size++ })

	if n > 0 && n == size {
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			out[i-1] = fromLuaVisited(t.RawGetInt(i), visited)
		}
		return out
	}

	out := make(map[string]any, size)
	t.ForEach(func(k, val lua.LValue) {
		out[k.String()] = fromLuaVisited(val, visited)
	})
	return out
}

// toLua converts a Go value to Lua. Values with no Lua equivalent travel
// as userdata and come back unchanged. A slice or map met again while it is
// being converted maps to the table already built for it.
func toLua(L *lua.LState, v any) lua.LValue {
	return toLuaVisited(L, v, make(map[luaRef]*lua.LTable))
}

// luaRef identifies a Go map, or a slice by backing array and length.
type luaRef struct {
	kind reflect.Kind
	ptr  uintptr
	n    int
}

func toLuaVisited(L *lua.LState, v any, visited map[luaRef]*lua.LTable) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []any:
		t, seen := tableFor(L, luaRef{reflect.Slice, sliceRef(val), len(val)}, visited)
		if seen {
			return t
		}
		for i, item := range val {
			t.RawSetInt(i+1, toLuaVisited(L, item, visited))
		}
		return t
	case []string:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, lua.LString(item))
		}
		return t
	case map[string]any:
		t, seen := tableFor(L, luaRef{reflect.Map, reflect.ValueOf(val).Pointer(), 0}, visited)
		if seen {
			return t
		}
		for k, item := range val {
			t.RawSetString(k, toLuaVisited(L, item, visited))
		}
		return t
	case map[string]string:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, lua.LString(item))
		}
		return t
	default:
		ud := L.NewUserData()
		ud.Value = v
		return ud
	}
}

// tableFor returns the table already built for ref, or registers a new one.
// Empty and nil values get a fresh table each time.
func tableFor(L *lua.LState, ref luaRef, visited map[luaRef]*lua.LTable) (*lua.LTable, bool) {
	if ref.ptr == 0 {
		return L.NewTable(), false
	}
	if t, ok := visited[ref]; ok {
		return t, true
	}
	t := L.NewTable()
	visited[ref] = t
	return t, false
}

func sliceRef(s []any) uintptr {
	if len(s) == 0 {
		return 0
	}
	return reflect.ValueOf(s).Pointer()
}
