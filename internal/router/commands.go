package router

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sahilm/fuzzy"
)

type handlerFunc func(r *Router, ctx context.Context, req request) (string, error)

type group string

const (
	groupProject group = "project"
	groupSession group = "session"
	groupOutput  group = "output"
	groupGit     group = "git"
	groupFiles   group = "files"
	groupMemory  group = "memory"
)

type command struct {
	handler      handlerFunc
	group        group
	needsProject bool
}

// commandTable maps lowercased tokens to their descriptors. helpText must
// mention every key.
var commandTable = map[string]command{
	"/projects":   {(*Router).cmdProjects, groupProject, false},
	"/cd":         {(*Router).cmdCd, groupProject, false},
	"/addproject": {(*Router).cmdAddProject, groupProject, false},
	"/newproject": {(*Router).cmdNewProject, groupProject, false},
	"/clone":      {(*Router).cmdClone, groupProject, false},
	"/repos":      {(*Router).cmdRepos, groupProject, false},
	"/rmproject":  {(*Router).cmdRmProject, groupProject, false},

	"/status": {(*Router).cmdStatus, groupSession, false},
	"/new":    {(*Router).cmdNew, groupSession, false},
	"/model":  {(*Router).cmdModel, groupSession, false},
	"/abort":  {(*Router).cmdAbort, groupSession, false},
	"/help":   {(*Router).cmdHelp, groupSession, false},
	"/start":  {(*Router).cmdStart, groupSession, false},

	"/detail": {(*Router).cmdDetail, groupOutput, false},

	"/diff":   {(*Router).cmdDiff, groupGit, true},
	"/commit": {(*Router).cmdCommit, groupGit, true},
	"/push":   {(*Router).cmdPush, groupGit, true},
	"/pull":   {(*Router).cmdPull, groupGit, true},
	"/branch": {(*Router).cmdBranch, groupGit, true},
	"/log":    {(*Router).cmdLog, groupGit, true},
	"/gs":     {(*Router).cmdGitStatus, groupGit, true},

	"/cat":  {(*Router).cmdCat, groupFiles, true},
	"/tree": {(*Router).cmdTree, groupFiles, true},

	"/memory": {(*Router).cmdMemory, groupMemory, true},
	"/search": {(*Router).cmdSearch, groupMemory, true},
}

// ModelAlias is a short name accepted by /model.
type ModelAlias struct {
	Name  string
	ID    anthropic.Model
	Label string
}

// The SDK has no constant for Opus 4.6 yet.
const modelOpus4_6 anthropic.Model = "claude-opus-4-6"

var modelAliases = []ModelAlias{
	{Name: "sonnet", ID: anthropic.ModelClaudeSonnet4_5_20250929, Label: "recommended"},
	{Name: "opus", ID: modelOpus4_6, Label: "strongest"},
	{Name: "haiku", ID: anthropic.ModelClaudeHaiku4_5_20251001, Label: "fastest"},
}

// ModelAliases returns the /model aliases in display order.
func ModelAliases() []ModelAlias {
	return slices.Clone(modelAliases)
}

// ResolveModel maps an alias to its model id. Anything else passes through.
func ResolveModel(arg string) string {
	for _, a := range modelAliases {
		if strings.EqualFold(a.Name, arg) {
			return string(a.ID)
		}
	}
	return arg
}

// ModelAliasNames returns the /model aliases, sorted.
func ModelAliasNames() []string {
	names := make([]string, 0, len(modelAliases))
	for _, a := range modelAliases {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

// Commands returns the sorted command tokens.
func Commands() []string {
	names := make([]string, 0, len(commandTable))
	for name := range commandTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// suggest returns the closest candidate to input, or "".
func suggest(input string, candidates []string) string {
	if input == "" || len(candidates) == 0 {
		return ""
	}
	matches := fuzzy.Find(input, candidates)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

func unknownCommand(token string) string {
	msg := fmt.Sprintf("Unknown command: %s\nSend /help for the command list", token)
	names := Commands()
	bare := make([]string, len(names))
	for i, n := range names {
		bare[i] = strings.TrimPrefix(n, "/")
	}
	if s := suggest(strings.TrimPrefix(token, "/"), bare); s != "" {
		msg += fmt.Sprintf("\nDid you mean /%s?", s)
	}
	return msg
}

const selectProjectPrompt = `Select a project first:
/projects - list projects
/cd <name> - switch project
/newproject <name> - create a project`

const selectProjectShort = "Select a project first: /projects to list, /cd <name> to switch"

const welcomeText = `codebridge - remote control for the claude coding agent

Plain messages are sent to the agent in the active project.
Send /help for all commands.`

const helpText = `codebridge commands:

Projects:
  /projects - list projects
  /cd <name> - switch project
  /newproject <name> [desc] - create a project (+GitHub)
  /clone <owner/repo> [name] - clone from GitHub
  /repos [n] - list GitHub repositories
  /addproject <name> <path> [desc] - register an existing directory
  /rmproject <name> - unregister a project

Session:
  /status - current state
  /new - start a new agent session
  /model [sonnet|opus|haiku|id] - show or switch the model
  /abort - stop the running task
  /start - welcome message
  /help - this list

Git:
  /diff [ref] - show changes
  /commit [msg] - commit everything
  /push [branch] - push
  /pull - pull
  /branch [name] - list or switch branches
  /log [n] - recent commits
  /gs - git status

Files:
  /cat <file> [range] - show a file
  /tree [path] [depth] - directory tree

Memory:
  /memory [stats] - recent work or totals
  /search <query> - search past work
  /detail - full output of the last task

Any other text is sent to the agent.`
