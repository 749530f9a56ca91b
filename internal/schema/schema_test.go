package schema

import (
	"testing"

	"github.com/spf13/cobra"
)

func newTree() *cobra.Command {
	root := &cobra.Command{Use: "swaps"}
	root.PersistentFlags().Bool("strict", false, "fail on partial results")
	child := &cobra.Command{Use: "swap", Short: "swap cmds"}
	leaf := &cobra.Command{Use: "quote", Short: "quote routes", RunE: func(*cobra.Command, []string) error { return nil }}
	leaf.Flags().String("from-chain", "", "source chain")
	leaf.Flags().String("amount", "", "amount in base units")
	_ = leaf.MarkFlagRequired("from-chain")
	child.AddCommand(leaf)
	root.AddCommand(child)
	return root
}

func TestBuildSchema(t *testing.T) {
	s, err := Build(newTree(), "swap quote")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "swaps swap quote" {
		t.Fatalf("unexpected path: %s", s.Path)
	}
	if len(s.Flags) != 2 {
		t.Fatalf("unexpected flags: %+v", s.Flags)
	}
	required := map[string]bool{}
	for _, f := range s.Flags {
		required[f.Name] = f.Required
	}
	if !required["from-chain"] || required["amount"] {
		t.Fatalf("unexpected required markers: %+v", s.Flags)
	}
	if len(s.Inherited) != 1 || s.Inherited[0].Name != "strict" {
		t.Fatalf("expected inherited strict flag, got %+v", s.Inherited)
	}
	if len(s.ExitCodes) != 0 {
		t.Fatalf("exit codes belong on the root only")
	}
}

func TestBuildRootListsExitCodes(t *testing.T) {
	s, err := Build(newTree(), "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	found := false
	for _, c := range s.ExitCodes {
		if c.Code == 18 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected no-provider exit code, got %+v", s.ExitCodes)
	}
}

func TestBuildUnknownPath(t *testing.T) {
	if _, err := Build(newTree(), "swap nope"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
