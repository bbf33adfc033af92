// cmd/tools/registry-tool/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"campaign-writer/pkg/registry"
)

var registryPath string

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{exportCmd, listCmd, updateCmd, validateCmd} {
		fs.StringVar(&registryPath, "path", "configs/workflow-registry.json", "Path to registry file")
	}

	force := exportCmd.Bool("force", false, "Overwrite an existing file")

	list := updateCmd.String("list", "agentRoles", "Template list (stagedSteps or agentRoles)")
	idUpdate := updateCmd.String("id", "", "Template ID to update")
	field := updateCmd.String("field", "", "Field to update (displayName, goal, instruction, modelClass, pinOnlyWithGuardrails)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		if _, err := os.Stat(registryPath); err == nil && !*force {
			fmt.Printf("Error: %s exists; pass -force to overwrite.\n", registryPath)
			os.Exit(1)
		}
		if err := registry.Save(registryPath, registry.Default()); err != nil {
			fmt.Printf("Error exporting registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote built-in registry to %s\n", registryPath)

	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := registry.LoadOrDefault(registryPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		printTemplates("Staged steps", reg.StagedSteps)
		printTemplates("Agent roles", reg.AgentRoles)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" {
			fmt.Println("Error: id and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateTemplate(*list, *idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating template: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated %s/%s, field %s to %q\n", *list, *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if _, err := registry.LoadRegistry(registryPath); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func printTemplates(title string, templates []registry.Template) {
	fmt.Printf("%s (%d):\n", title, len(templates))
	for i, t := range templates {
		pin := "routed"
		if t.ModelClass != "" {
			pin = t.ModelClass
			if t.PinOnlyWithGuardrails {
				pin += " (guardrails only)"
			}
		}
		fmt.Printf("  %d. %-20s %-28s model=%s\n", i+1, t.ID, t.DisplayName, pin)
	}
}

func updateTemplate(list, id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	var templates []registry.Template
	switch list {
	case "stagedSteps":
		templates = reg.StagedSteps
	case "agentRoles":
		templates = reg.AgentRoles
	default:
		return fmt.Errorf("unknown list: %s", list)
	}

	found := false
	for i := range templates {
		if templates[i].ID != id {
			continue
		}
		found = true
		switch field {
		case "displayName":
			templates[i].DisplayName = value
		case "goal":
			templates[i].Goal = value
		case "instruction":
			templates[i].Instruction = value
		case "modelClass":
			templates[i].ModelClass = strings.ToLower(value)
		case "pinOnlyWithGuardrails":
			pin, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid pinOnlyWithGuardrails value: %w", err)
			}
			templates[i].PinOnlyWithGuardrails = pin
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}
	if !found {
		return fmt.Errorf("template with ID %s not found in %s", id, list)
	}

	if err := reg.Validate(); err != nil {
		return err
	}
	return registry.Save(registryPath, reg)
}

func help() {
	fmt.Println("Usage: registry-tool <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  export    Write the built-in workflow registry to -path")
	fmt.Println("  list      List staged steps and agent roles")
	fmt.Println("  update    Update a template field")
	fmt.Println("  validate  Validate the registry file")
	fmt.Println("  help      Show this help message")
}
