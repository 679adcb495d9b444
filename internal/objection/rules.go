package objection

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/EduardoFdeM/PitchAI/internal/event/events"
)

// ErrRulesClosed is returned when a closed rule engine is used.
var ErrRulesClosed = errors.New("objection rules closed")

// detectFn is the Lua entry point a rule script must define:
//
//	function detect(text)
//	  -- return category, confidence, snippet, or nil for no match
//	end
const detectFn = "detect"

// LuaRules runs user-supplied objection rules in a sandboxed Lua state.
//
// gopher-lua's LState is not goroutine-safe; the mutex serializes all
// calls. Only base, table, string and math libraries are opened: rule
// scripts get no io, os or package access.
type LuaRules struct {
	mu     sync.Mutex
	state  *lua.LState
	closed bool
}

// NewLuaRules compiles a rule script. The script must define a global
// detect(text) function.
func NewLuaRules(script string) (*LuaRules, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("load objection rules: %w", err)
	}
	if L.GetGlobal(detectFn).Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("objection rules: %q function not defined", detectFn)
	}

	return &LuaRules{state: L}, nil
}

// Detect runs the rule script against one piece of text.
func (r *LuaRules) Detect(text string) ([]Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRulesClosed
	}

	L := r.state
	top := L.GetTop()
	defer L.SetTop(top)

	L.Push(L.GetGlobal(detectFn))
	L.Push(lua.LString(text))
	if err := L.PCall(1, lua.MultRet, nil); err != nil {
		return nil, fmt.Errorf("objection rules: %w", err)
	}

	nret := L.GetTop() - top
	if nret == 0 || L.Get(top+1) == lua.LNil {
		return nil, nil
	}

	cat := events.ObjectionCategory(L.ToString(top + 1))
	switch cat {
	case events.ObjectionPrice, events.ObjectionTiming,
		events.ObjectionAuthority, events.ObjectionNeed:
	default:
		return nil, fmt.Errorf("objection rules: unknown category %q", cat)
	}

	conf := 0.5
	if nret >= 2 {
		conf = float64(L.ToNumber(top + 2))
	}
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	snip := ""
	if nret >= 3 {
		snip = L.ToString(top + 3)
	}

	return []Match{{Category: cat, Confidence: conf, Snippet: snip}}, nil
}

// Close releases the Lua state.
func (r *LuaRules) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.state.Close()
	r.closed = true
}
