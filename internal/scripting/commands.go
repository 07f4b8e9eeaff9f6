// Package scripting loads operator-defined console commands from Lua
// scripts. A script returns a table with a name, a description, and a
// run function:
//
//	return {
//		name = "uptime",
//		desc = "show how long the controller has been up",
//		run = function(...)
//			return "not implemented"
//		end,
//	}
//
// The run function receives the command arguments as strings and its
// string result lands in the console transcript.
package scripting

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"

	"github.com/cherrydoor/cherryctl/internal/console"
)

// LoadCommands runs every *.lua file in dir and collects the commands
// they define. Scripts that fail to load or return the wrong shape
// are logged and skipped. The returned closer shuts down the Lua
// states; call it when the session ends. A missing directory is not
// an error.
func LoadCommands(dir string) ([]console.Command, func(), error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read scripts dir %s: %w", dir, err)
	}

	var commands []console.Command
	var states []*lua.LState

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		cmd, L, err := loadScript(path)
		if err != nil {
			log.Printf("Lua error [%s]: %v", path, err)
			continue
		}
		commands = append(commands, cmd)
		states = append(states, L)
	}

	closer := func() {
		for _, L := range states {
			L.Close()
		}
	}
	return commands, closer, nil
}

func loadScript(path string) (console.Command, *lua.LState, error) {
	L := lua.NewState(lua.Options{
		CallStackSize: 120,
		RegistrySize:  120 * 20,
	})

	ok := false
	defer func() {
		if !ok {
			L.Close()
		}
	}()

	if err := L.DoFile(path); err != nil {
		return console.Command{}, nil, fmt.Errorf("load script: %w", err)
	}

	tbl, okTbl := L.Get(-1).(*lua.LTable)
	if !okTbl {
		return console.Command{}, nil, fmt.Errorf("script must return a table")
	}

	name, okName := tbl.RawGetString("name").(lua.LString)
	if !okName || name == "" {
		return console.Command{}, nil, fmt.Errorf("command table needs a name")
	}
	desc, _ := tbl.RawGetString("desc").(lua.LString)
	run, okRun := tbl.RawGetString("run").(*lua.LFunction)
	if !okRun {
		return console.Command{}, nil, fmt.Errorf("command table needs a run function")
	}

	cmd := console.Command{
		Name: string(name),
		Desc: string(desc),
		Run: func(args []string) string {
			lvArgs := make([]lua.LValue, len(args))
			for i, a := range args {
				lvArgs[i] = lua.LString(a)
			}
			if err := L.CallByParam(lua.P{
				Fn:      run,
				NRet:    1,
				Protect: true,
			}, lvArgs...); err != nil {
				log.Printf("Lua error [%s]: %v", path, err)
				return fmt.Sprintf("script error: %v", err)
			}
			ret := L.Get(-1)
			L.Pop(1)
			if ret == lua.LNil {
				return ""
			}
			return ret.String()
		},
	}

	ok = true
	return cmd, L, nil
}
