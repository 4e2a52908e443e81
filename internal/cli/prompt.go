package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/gemini-recolor-kit/pkg/domain"
	"github.com/shouni/gemini-recolor-kit/pkg/recolor"
)

func (c *CLI) promptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Show the branch and prompts a recolor would send, without calling the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Palette.Validate(); err != nil {
				return err
			}
			locs, err := cfg.MaskLocations()
			if err != nil {
				return err
			}

			// 経路の判定にはマスクの有無だけが必要なので、場所を中身の代わりに使う
			masks := make(domain.MaskSet, len(locs))
			for r, loc := range locs {
				masks[r] = []byte(loc)
			}

			c.printPlan(recolor.Preview(cfg.Palette, masks))
			return nil
		},
	}
	addInputFlags(cmd)
	return cmd
}

func (c *CLI) printPlan(plan recolor.Plan) {
	fmt.Fprintf(c.out, "branch: %s\n", plan.Branch)
	if len(plan.Edits) == 0 {
		fmt.Fprintln(c.out, "edits: none (template is returned unchanged)")
	}
	for i, e := range plan.Edits {
		label := string(e.Region)
		if label == "" {
			label = "all"
		}
		fmt.Fprintf(c.out, "edit %d [%s]: %s\n", i+1, label, e.Prompt)
	}
	if len(plan.Skipped) > 0 {
		names := make([]string, len(plan.Skipped))
		for i, r := range plan.Skipped {
			names[i] = string(r)
		}
		fmt.Fprintf(c.out, "skipped: %s\n", strings.Join(names, ", "))
	}
}
