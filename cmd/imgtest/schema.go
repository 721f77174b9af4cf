package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/imgtest/pkg/manifest"
	"github.com/ormasoftchile/imgtest/pkg/testcase"
)

const descriptorSchemaName = "descriptor"

var schemaCmd = &cobra.Command{
	Use:       "schema {descriptor|v1|v2}",
	Short:     "Print the JSON Schema of test descriptors or of a manifest format",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: schemaNames(),
	RunE:      runSchema,
}

func schemaNames() []string {
	names := []string{descriptorSchemaName}
	for _, f := range manifest.NewIndex("").Formats() {
		names = append(names, f.Name())
	}
	slices.Sort(names)
	return names
}

func runSchema(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == descriptorSchemaName {
		data, err = testcase.DescriptorSchema()
	} else {
		format, ok := manifest.NewIndex("").Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown schema %q", args[0])
		}
		data, err = format.Schema()
	}
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
