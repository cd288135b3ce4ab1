package main

import (
	"fmt"
	"log"
	"os"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"chat-eval/pkg/dataset"
	"chat-eval/pkg/taxonomy"
)

func main() {
	_ = godotenv.Load()

	var taxonomyPath string
	root := &cobra.Command{
		Use:           "dataset",
		Short:         "Inspect and combine generated dialogue datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&taxonomyPath, "taxonomy", "", "Taxonomy YAML file (defaults to the built-in one)")
	root.AddCommand(mergeCmd(), statsCmd(&taxonomyPath))

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func mergeCmd() *cobra.Command {
	var inputs []string
	var output string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Concatenate datasets and renumber ids from 1",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs = append(inputs, args...)
			if len(inputs) == 0 {
				return fmt.Errorf("no input files")
			}
			ds, err := dataset.MergeFiles(inputs)
			if err != nil {
				return err
			}
			if err := dataset.Save(output, ds); err != nil {
				return err
			}
			log.Printf("Merged %d dialogues into %s", len(ds), output)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&inputs, "inputs", nil, "Dataset files to merge, in order")
	cmd.Flags().StringVar(&output, "output", "data/chats.json", "Merged dataset file")
	return cmd
}

func statsCmd(taxonomyPath *string) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the label distribution of a dataset as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := taxonomy.Load(*taxonomyPath)
			if err != nil {
				return err
			}
			ds, err := dataset.Load(input)
			if err != nil {
				return err
			}
			out, err := sonic.ConfigStd.MarshalIndent(ds.Distribution(tx), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, string(out))
			return err
		},
	}
	cmd.Flags().StringVar(&input, "input", "data/chats.json", "Dataset file")
	return cmd
}
