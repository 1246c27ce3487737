// Package policy lets operators decide, with a small Lua script, which
// e-mails are allowed to sign up.
//
// The script must define a global function admit(email) returning either
// a boolean or a table like {allow = false, reason = "..."}.
//
//	function admit(email)
//	  if string.find(email, "@example.com$") then
//	    return true
//	  end
//	  return {allow = false, reason = "only example.com addresses"}
//	end
package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

const (
	admitFn = "admit"
)

type (
	Verdict struct {
		Allow  bool
		Reason string
	}

	// Lua runs an admission script. The script is compiled once, but each
	// call gets its own interpreter since lua.LState is not safe for
	// concurrent use.
	Lua struct {
		name  string
		proto *lua.FunctionProto
	}
)

func FromFile(file string) (*Lua, error) {
	code, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unable to read signup policy %v, cause %w", file, err)
	}
	return FromLua(filepath.Base(file), string(code))
}

func FromLua(name, code string) (*Lua, error) {
	chunk, err := parse.Parse(strings.NewReader(code), name)
	if err != nil {
		return nil, fmt.Errorf("unable to parse signup policy %v, cause %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("unable to compile signup policy %v, cause %w", name, err)
	}
	l := &Lua{name: name, proto: proto}
	L, err := l.load(context.Background())
	if err != nil {
		return nil, err
	}
	L.Close()
	return l, nil
}

// Admit calls the admit function of the script with email
func (l *Lua) Admit(ctx context.Context, email string) (Verdict, error) {
	L, err := l.load(ctx)
	if err != nil {
		return Verdict{}, err
	}
	defer L.Close()
	err = L.CallByParam(lua.P{
		Fn:      L.GetGlobal(admitFn),
		NRet:    1,
		Protect: true,
	}, lua.LString(email))
	if err != nil {
		return Verdict{}, fmt.Errorf("signup policy %v failed, cause %w", l.name, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	var v Verdict
	switch ret := ret.(type) {
	case lua.LBool:
		v.Allow = bool(ret)
	case *lua.LTable:
		err = gluamapper.Map(ret, &v)
		if err != nil {
			return Verdict{}, fmt.Errorf("unable to read verdict from signup policy %v, cause %w", l.name, err)
		}
	default:
		return Verdict{}, fmt.Errorf("signup policy %v returned %v, expecting a boolean or a table", l.name, ret.Type())
	}
	return v, nil
}

func (l *Lua) load(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openLibs(L)
	L.SetContext(ctx)
	L.Push(L.NewFunctionFromProto(l.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("unable to load signup policy %v, cause %w", l.name, err)
	}
	if L.GetGlobal(admitFn).Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("signup policy %v does not define an %v function", l.name, admitFn)
	}
	return L, nil
}

func openLibs(L *lua.LState) {
	for _, pair := range []struct {
		n string
		f lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(pair.f),
			NRet:    0,
			Protect: true,
		}, lua.LString(pair.n)); err != nil {
			panic(err)
		}
	}
	// scripts only decide, they never touch the filesystem
	for _, name := range []string{"dofile", "loadfile"} {
		L.SetGlobal(name, lua.LNil)
	}
}
