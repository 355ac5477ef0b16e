package cmd

import (
	"context"

	"github.com/kfsoftware/agritrace/pkg/lifecycle"
	"github.com/kfsoftware/agritrace/pkg/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type draftOptions struct {
	count     int
	createdBy string
}

// NewDraftCmd seeds pending batches locally; the ledger is never contacted.
func NewDraftCmd() *cobra.Command {
	c := draftOptions{}
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Generate pending demo batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.count <= 0 {
				return errors.Errorf("count must be positive, got %d", c.count)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			backend, err := openBackend(cfg.Storage)
			if err != nil {
				return err
			}
			defer backend.Close()

			ctrl := lifecycle.NewController(store.NewBatchStore(backend), nil)
			for i := 0; i < c.count; i++ {
				draft, err := ctrl.GenerateDraft(context.Background(), c.createdBy)
				if err != nil {
					return err
				}
				cmd.Printf("%s\t%s\t%s\t%s\n", draft.ID, draft.Origin, draft.Farm, draft.ContentHash)
			}
			log.Infof("Generated %d draft batches", c.count)
			return nil
		},
	}

	persistentFlags := cmd.PersistentFlags()
	persistentFlags.IntVarP(&c.count, "count", "n", 1, "Number of drafts to generate")
	persistentFlags.StringVarP(&c.createdBy, "created-by", "", "", "Creator recorded on the drafts, random farmer when empty")
	return cmd
}
