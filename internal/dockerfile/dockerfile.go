// Package dockerfile is a read-only model of a build manifest. It parses
// the file with buildkit's Dockerfile parser, merges caller build
// arguments over ARG defaults declared in the file, and substitutes the
// merged arguments into instruction values in one pass. Views over the
// result expose the ordered parent images and copy/add source patterns
// the cache hash is computed from.
package dockerfile

import (
	"fmt"
	"os"
	"strings"

	"github.com/moby/buildkit/frontend/dockerfile/parser"
)

// Dockerfile is a parsed, argument-substituted build manifest.
type Dockerfile struct {
	Path string

	args         map[string]string
	instructions []instruction
}

type instruction struct {
	cmd    string // upper-cased instruction keyword
	flags  []string
	tokens []string
}

// Load parses the Dockerfile at path. buildArgs are merged over the ARG
// defaults declared in the file (caller values win) and the merged table
// is substituted into every instruction value, both $NAME and ${NAME}
// forms. Unknown variables are left verbatim.
func Load(path string, buildArgs map[string]string) (*Dockerfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dockerfile: %w", err)
	}
	defer f.Close()

	res, err := parser.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse dockerfile %s: %w", path, err)
	}

	var instructions []instruction
	for _, node := range res.AST.Children {
		ins := instruction{cmd: strings.ToUpper(node.Value), flags: node.Flags}
		for n := node.Next; n != nil; n = n.Next {
			ins.tokens = append(ins.tokens, n.Value)
		}
		instructions = append(instructions, ins)
	}

	// ARG defaults first, then caller-supplied values on top.
	args := make(map[string]string)
	for _, ins := range instructions {
		if ins.cmd != "ARG" {
			continue
		}
		for _, tok := range ins.tokens {
			if k, v, ok := strings.Cut(tok, "="); ok {
				args[k] = v
			}
		}
	}
	for k, v := range buildArgs {
		args[k] = v
	}

	for i := range instructions {
		for j, tok := range instructions[i].tokens {
			instructions[i].tokens[j] = expandArgs(tok, args)
		}
		for j, flag := range instructions[i].flags {
			instructions[i].flags[j] = expandArgs(flag, args)
		}
	}

	return &Dockerfile{Path: path, args: args, instructions: instructions}, nil
}

// Args returns the merged build-argument table used for substitution.
func (d *Dockerfile) Args() map[string]string {
	return d.args
}

// ParentImages returns the FROM references in declaration order,
// excluding references to earlier named build stages.
func (d *Dockerfile) ParentImages() []string {
	var parents []string
	stages := make(map[string]bool)
	for _, ins := range d.instructions {
		if ins.cmd != "FROM" || len(ins.tokens) == 0 {
			continue
		}
		image := ins.tokens[0]
		if !stages[strings.ToLower(image)] {
			parents = append(parents, image)
		}
		// FROM <image> AS <stage>
		if len(ins.tokens) >= 3 && strings.EqualFold(ins.tokens[1], "AS") {
			stages[strings.ToLower(ins.tokens[2])] = true
		}
	}
	return parents
}

// CopiedSources returns the first source token of each COPY, in order.
// Copies from another build stage are not local sources and are skipped.
func (d *Dockerfile) CopiedSources() []string {
	return d.sources("COPY")
}

// AddedSources returns the first source token of each ADD, in order.
func (d *Dockerfile) AddedSources() []string {
	return d.sources("ADD")
}

func (d *Dockerfile) sources(cmd string) []string {
	var srcs []string
	for _, ins := range d.instructions {
		if ins.cmd != cmd || len(ins.tokens) == 0 {
			continue
		}
		if fromStage(ins.flags) {
			continue
		}
		srcs = append(srcs, ins.tokens[0])
	}
	return srcs
}

func fromStage(flags []string) bool {
	for _, f := range flags {
		if strings.HasPrefix(f, "--from") {
			return true
		}
	}
	return false
}
