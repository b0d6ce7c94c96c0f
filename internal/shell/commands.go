package shell

import (
	"fmt"
	"strings"

	"github.com/joeycumines/goja-adblock/filterengine"
)

func builtinCommands() []Command {
	return []Command{
		&addCommand{base{"add", "Add one or more filter rules", "add <filter> [filter ...]"}},
		&removeCommand{base{"remove", "Remove one or more filter rules", "remove <filter> [filter ...]"}},
		&filtersCommand{base{"filters", "List the configured filter rules", "filters"}},
		&matchCommand{base{"match", "Check whether a URL would be blocked", "match <url> <content-type> [document-url]"}},
		&allowlistedCommand{base{"allowlisted", "Check whether content is allowlisted", "allowlisted <url> <content-type> [document-url ...]"}},
		&elemhideCommand{base{"elemhide", "Print the element hiding stylesheet for a domain", "elemhide <domain>"}},
		&selectorsCommand{base{"selectors", "Print the element hiding selectors for a domain", "selectors <domain>"}},
		&evalCommand{base{"eval", "Evaluate a JavaScript expression in the runtime", "eval <expression>"}},
		&helpCommand{base{"help", "Show available commands", "help [command]"}},
		&exitCommand{base{"exit", "Leave the shell", "exit"}},
	}
}

type addCommand struct{ base }

func (c *addCommand) Execute(sh *Shell, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	fe, err := sh.Platform().GetFilterEngine()
	if err != nil {
		return err
	}
	for _, text := range args {
		if err := fe.AddFilter(text); err != nil {
			return fmt.Errorf("adding %q: %w", text, err)
		}
	}
	sh.Printf("added %d filter(s)\n", len(args))
	return nil
}

type removeCommand struct{ base }

func (c *removeCommand) Execute(sh *Shell, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	fe, err := sh.Platform().GetFilterEngine()
	if err != nil {
		return err
	}
	for _, text := range args {
		if err := fe.RemoveFilter(text); err != nil {
			return fmt.Errorf("removing %q: %w", text, err)
		}
	}
	sh.Printf("removed %d filter(s)\n", len(args))
	return nil
}

type filtersCommand struct{ base }

func (c *filtersCommand) Execute(sh *Shell, args []string) error {
	fe, err := sh.Platform().GetFilterEngine()
	if err != nil {
		return err
	}
	listed, err := fe.ListedFilters()
	if err != nil {
		return err
	}
	if len(listed) == 0 {
		sh.Printf("no filters configured\n")
		return nil
	}
	for _, text := range listed {
		sh.Printf("%s\n", text)
	}
	return nil
}

type matchCommand struct{ base }

func (c *matchCommand) Execute(sh *Shell, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	mask, ok := filterengine.ParseContentType(args[1])
	if !ok {
		return fmt.Errorf("unknown content type %q", args[1])
	}
	documentURL := ""
	if len(args) == 3 {
		documentURL = args[2]
	}

	fe, err := sh.Platform().GetFilterEngine()
	if err != nil {
		return err
	}
	match, err := fe.Matches(args[0], mask, documentURL, "", false)
	if err != nil {
		return err
	}
	switch {
	case !match.IsValid():
		sh.Printf("no match\n")
	case match.IsException():
		sh.Printf("allowlisted by %s\n", match.Text)
	default:
		sh.Printf("blocked by %s\n", match.Text)
	}
	return nil
}

type allowlistedCommand struct{ base }

func (c *allowlistedCommand) Execute(sh *Shell, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	mask, ok := filterengine.ParseContentType(args[1])
	if !ok {
		return fmt.Errorf("unknown content type %q", args[1])
	}
	fe, err := sh.Platform().GetFilterEngine()
	if err != nil {
		return err
	}
	allowed, err := fe.IsContentAllowlisted(args[0], mask, args[2:], "")
	if err != nil {
		return err
	}
	sh.Printf("%v\n", allowed)
	return nil
}

type elemhideCommand struct{ base }

func (c *elemhideCommand) Execute(sh *Shell, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	fe, err := sh.Platform().GetFilterEngine()
	if err != nil {
		return err
	}
	sheet, err := fe.GetElementHidingStyleSheet(args[0], false)
	if err != nil {
		return err
	}
	if sheet == "" {
		sh.Printf("no element hiding rules for %s\n", args[0])
		return nil
	}
	sh.Printf("%s", sheet)
	return nil
}

type selectorsCommand struct{ base }

func (c *selectorsCommand) Execute(sh *Shell, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	fe, err := sh.Platform().GetFilterEngine()
	if err != nil {
		return err
	}
	selectors, err := fe.GetElementHidingEmulationSelectors(args[0])
	if err != nil {
		return err
	}
	if len(selectors) == 0 {
		sh.Printf("no selectors for %s\n", args[0])
		return nil
	}
	for _, sel := range selectors {
		sh.Printf("%s\n", sel)
	}
	return nil
}

type evalCommand struct{ base }

func (c *evalCommand) Execute(sh *Shell, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	eng := sh.Platform().Engine()
	if eng == nil {
		return fmt.Errorf("platform not initialized")
	}
	result, err := eng.Evaluate("eval.js", strings.Join(args, " "))
	if err != nil {
		return err
	}
	defer result.Release()

	if result.IsUndefined() {
		sh.Printf("undefined\n")
		return nil
	}
	text, err := result.AsString()
	if err != nil {
		return err
	}
	sh.Printf("%s\n", text)
	return nil
}

type helpCommand struct{ base }

func (c *helpCommand) Execute(sh *Shell, args []string) error {
	if len(args) == 1 {
		cmd, ok := sh.commands[args[0]]
		if !ok {
			return fmt.Errorf("unknown command %q", args[0])
		}
		sh.Printf("%s - %s\nusage: %s\n", cmd.Name(), cmd.Description(), cmd.Usage())
		return nil
	}
	sh.Printf("commands:\n")
	for _, name := range sh.commandNames() {
		sh.Printf("  %-12s %s\n", name, sh.commands[name].Description())
	}
	return nil
}

type exitCommand struct{ base }

func (c *exitCommand) Execute(sh *Shell, args []string) error {
	return ErrExit
}
