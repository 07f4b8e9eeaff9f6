package scripting

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write script: %v", err)
	}
}

func TestLoadCommandsMissingDir(t *testing.T) {
	commands, closer, err := LoadCommands(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("LoadCommands: %v", err)
	}
	defer closer()
	if len(commands) != 0 {
		t.Fatalf("expected no commands, got %d", len(commands))
	}
}

func TestLoadCommandsRunsScript(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "greet.lua", `
return {
	name = "greet",
	desc = "say hello",
	run = function(who)
		if who == nil then
			return "hello"
		end
		return "hello " .. who
	end,
}
`)

	commands, closer, err := LoadCommands(dir)
	if err != nil {
		t.Fatalf("LoadCommands: %v", err)
	}
	defer closer()

	if len(commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(commands))
	}
	cmd := commands[0]
	if cmd.Name != "greet" || cmd.Desc != "say hello" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
	if got := cmd.Run(nil); got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
	if got := cmd.Run([]string{"world"}); got != "hello world" {
		t.Fatalf("expected hello world, got %q", got)
	}
}

func TestLoadCommandsSkipsBrokenScripts(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "broken.lua", `this is not lua`)
	writeScript(t, dir, "noname.lua", `return { run = function() return "x" end }`)
	writeScript(t, dir, "good.lua", `
return {
	name = "ok",
	run = function() return "fine" end,
}
`)
	writeScript(t, dir, "ignored.txt", `not a script`)

	commands, closer, err := LoadCommands(dir)
	if err != nil {
		t.Fatalf("LoadCommands: %v", err)
	}
	defer closer()

	if len(commands) != 1 || commands[0].Name != "ok" {
		t.Fatalf("expected only the valid script loaded, got %+v", commands)
	}
}

func TestScriptErrorSurfacesInOutput(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "boom.lua", `
return {
	name = "boom",
	run = function()
		error("exploded")
	end,
}
`)

	commands, closer, err := LoadCommands(dir)
	if err != nil {
		t.Fatalf("LoadCommands: %v", err)
	}
	defer closer()

	if len(commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(commands))
	}
	out := commands[0].Run(nil)
	if out == "" {
		t.Fatal("expected a script error message, got empty output")
	}
}
