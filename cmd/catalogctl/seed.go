package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/service"
	"github.com/myfreehouseplans/catalog/internal/slug"
)

// seedFile is the document accepted by the seed command.
//
//	categories:
//	  - name: Modern
//	    description: Clean lines and open plans.
//	plans:
//	  - title: Casa Lina
//	    description: A two bedroom single storey home.
//	    price: 49.90
//	    number_of_bedrooms: 2
//	    categories: [Modern]
//
// Plan keys use the same names as the plan JSON representation.
type seedFile struct {
	Categories []seedCategory   `yaml:"categories"`
	Plans      []map[string]any `yaml:"plans"`
}

type seedCategory struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// seedPlan is a decoded plan plus the category names it belongs to.
type seedPlan struct {
	Plan       model.HousePlan
	Categories []string
}

var seedPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load categories and plans from a YAML file",
	Long: `Load categories and plans from a YAML file.

Categories are created when missing. A plan is skipped when a plan
with the same slug already exists, so the command can be re-run.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedPath, "file", "f", "seed.yaml", "Seed file path")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f, err := os.Open(seedPath)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	doc, err := parseSeed(f)
	if err != nil {
		return err
	}
	plans, err := doc.decodePlans()
	if err != nil {
		return err
	}

	repo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	planRepo := repository.NewPlanRepository(repo)
	categories := service.NewCategoryService(repository.NewCategoryRepository(repo), logger)
	planService := service.NewPlanService(planRepo, nil, logger)

	categoryIDs := make(map[string]int64)
	ensure := func(name, description string) (int64, error) {
		key := strings.ToLower(strings.TrimSpace(name))
		if id, ok := categoryIDs[key]; ok {
			return id, nil
		}
		c, err := categories.Ensure(ctx, service.CategoryInput{Name: name, Description: description})
		if err != nil {
			return 0, fmt.Errorf("failed to ensure category %q: %w", name, err)
		}
		categoryIDs[key] = c.ID
		return c.ID, nil
	}

	for _, c := range doc.Categories {
		if _, err := ensure(c.Name, c.Description); err != nil {
			return err
		}
	}

	var created, skipped int
	for _, sp := range plans {
		existing, err := planRepo.GetBySlug(ctx, slug.Make(sp.Plan.Title), false)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to look up plan %q: %w", sp.Plan.Title, err)
		}
		if existing != nil {
			logger.Debug("plan exists, skipping", "title", sp.Plan.Title, "plan_id", existing.ID)
			skipped++
			continue
		}

		ids := make([]int64, 0, len(sp.Categories))
		for _, name := range sp.Categories {
			id, err := ensure(name, "")
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		plan, err := planService.Create(ctx, service.PlanInput{Plan: sp.Plan, CategoryIDs: ids}, nil)
		if err != nil {
			return fmt.Errorf("failed to create plan %q: %w", sp.Plan.Title, err)
		}
		logger.Info("plan seeded", "plan_id", plan.ID, "slug", plan.Slug, "code", plan.PublicPlanCode)
		created++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "categories: %d, plans created: %d, plans skipped: %d\n",
		len(categoryIDs), created, skipped)
	return nil
}

// parseSeed reads a seed document.
func parseSeed(r io.Reader) (*seedFile, error) {
	var doc seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for i, c := range doc.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("category %d has no name", i+1)
		}
	}
	return &doc, nil
}

// decodePlans converts the loose plan maps into plans.
// The category list is split off before the rest is decoded through
// the plan's JSON tags.
func (d *seedFile) decodePlans() ([]seedPlan, error) {
	out := make([]seedPlan, 0, len(d.Plans))
	for i, raw := range d.Plans {
		var sp seedPlan

		fields := make(map[string]any, len(raw))
		for k, v := range raw {
			fields[k] = v
		}
		if names, ok := fields["categories"]; ok {
			list, ok := names.([]any)
			if !ok {
				return nil, fmt.Errorf("plan %d: categories must be a list of names", i+1)
			}
			for _, n := range list {
				name, ok := n.(string)
				if !ok || strings.TrimSpace(name) == "" {
					return nil, fmt.Errorf("plan %d: categories must be a list of names", i+1)
				}
				sp.Categories = append(sp.Categories, name)
			}
			delete(fields, "categories")
		}

		b, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("plan %d: %w", i+1, err)
		}
		if err := json.Unmarshal(b, &sp.Plan); err != nil {
			return nil, fmt.Errorf("plan %d: %w", i+1, err)
		}
		if strings.TrimSpace(sp.Plan.Title) == "" {
			return nil, fmt.Errorf("plan %d has no title", i+1)
		}
		out = append(out, sp)
	}
	return out, nil
}
