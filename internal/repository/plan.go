package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/myfreehouseplans/catalog/internal/model"
)

// PlanSort orders plan listings.
type PlanSort string

const (
	SortNewest    PlanSort = "newest"
	SortPriceLow  PlanSort = "price_low"
	SortPriceHigh PlanSort = "price_high"
	SortPopular   PlanSort = "popular"
	SortTitle     PlanSort = "title"
)

// effectivePriceSQL is the price a visitor pays today.
const effectivePriceSQL = `(CASE WHEN p.sale_price IS NOT NULL AND p.sale_price > 0 AND p.sale_price < p.price THEN p.sale_price ELSE p.price END)`

var planOrderBy = map[PlanSort]string{
	SortNewest:    "p.created_at DESC, p.id DESC",
	SortPriceLow:  effectivePriceSQL + " ASC, p.id DESC",
	SortPriceHigh: effectivePriceSQL + " DESC, p.id DESC",
	SortPopular:   "p.views_count DESC, p.id DESC",
	SortTitle:     "p.title ASC, p.id ASC",
}

// ParsePlanSort maps a query value to a sort, defaulting to newest.
func ParsePlanSort(s string) PlanSort {
	if _, ok := planOrderBy[PlanSort(s)]; ok {
		return PlanSort(s)
	}
	return SortNewest
}

// PlanFilter narrows plan listings.
type PlanFilter struct {
	PublishedOnly bool
	Query         string
	CategorySlug  string
	MinBedrooms   *int
	MinBathrooms  *float64
	MaxPrice      *decimal.Decimal
	PlanType      model.PlanType
	FeaturedOnly  bool
	Sort          PlanSort
	Page          Page
}

// PlanPage is one page of plans with the total match count.
type PlanPage struct {
	Plans   []*model.HousePlan
	Total   int64
	Page    int
	PerPage int
}

// Pages is the number of pages for the filter.
func (p PlanPage) Pages() int {
	return Pages(p.Total, p.PerPage)
}

// PlanStats feeds the admin dashboard.
type PlanStats struct {
	Total      int64
	Published  int64
	Featured   int64
	TotalViews int64
}

// PlanSlug is a published plan's slug and last modification time.
type PlanSlug struct {
	Slug      string
	UpdatedAt time.Time
}

const planColumns = `
	p.id, p.title, p.slug, p.reference_code, COALESCE(p.public_plan_code, ''),
	p.description, p.short_description,
	p.plan_type, p.total_area_m2, p.total_area_sqft, p.number_of_bedrooms, p.number_of_bathrooms,
	p.number_of_floors, p.parking_spaces, p.building_width, p.building_length,
	p.roof_type, p.structure_type, p.foundation_type, p.ceiling_height, p.construction_complexity,
	p.estimated_construction_cost_note, p.suitable_climate, p.ideal_for,
	p.main_features, p.room_details, p.construction_notes, p.design_philosophy,
	p.lifestyle_suitability, p.customization_potential,
	p.target_buyer, p.budget_category, p.key_selling_point, p.problems_this_plan_solves, p.architectural_style,
	p.living_rooms, p.kitchens, p.offices, p.terraces, p.storage_rooms,
	p.min_plot_width, p.min_plot_length, p.climate_compatibility, p.estimated_build_time,
	p.estimated_cost_low, p.estimated_cost_high,
	p.free_pdf_file, p.price_pack_1, p.price_pack_2, p.price_pack_3,
	p.gumroad_pack_2_url, p.gumroad_pack_3_url,
	p.pack1_description, p.pack2_description, p.pack3_description,
	p.price, p.sale_price, p.cover_image, p.main_image,
	p.bedrooms, p.bathrooms, p.square_feet, p.stories, p.garage,
	p.seo_title, p.seo_description, p.seo_keywords,
	p.is_featured, p.is_published, p.views_count, p.created_by_id, p.created_at, p.updated_at`

func scanPlan(row pgx.Row) (*model.HousePlan, error) {
	var p model.HousePlan
	err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.ReferenceCode, &p.PublicPlanCode,
		&p.Description, &p.ShortDescription,
		&p.PlanType, &p.TotalAreaM2, &p.TotalAreaSqft, &p.NumberOfBedrooms, &p.NumberOfBathrooms,
		&p.NumberOfFloors, &p.ParkingSpaces, &p.BuildingWidth, &p.BuildingLength,
		&p.RoofType, &p.StructureType, &p.FoundationType, &p.CeilingHeight, &p.ConstructionComplexity,
		&p.CostNote, &p.SuitableClimate, &p.IdealFor,
		&p.MainFeatures, &p.RoomDetails, &p.ConstructionNotes, &p.DesignPhilosophy,
		&p.LifestyleSuitability, &p.CustomizationPotential,
		&p.TargetBuyer, &p.BudgetCategory, &p.KeySellingPoint, &p.ProblemsThisPlanSolves, &p.ArchitecturalStyle,
		&p.LivingRooms, &p.Kitchens, &p.Offices, &p.Terraces, &p.StorageRooms,
		&p.MinPlotWidth, &p.MinPlotLength, &p.ClimateCompatibility, &p.EstimatedBuildTime,
		&p.EstimatedCostLow, &p.EstimatedCostHigh,
		&p.FreePDFFile, &p.PricePack1, &p.PricePack2, &p.PricePack3,
		&p.GumroadPack2URL, &p.GumroadPack3URL,
		&p.Pack1Description, &p.Pack2Description, &p.Pack3Description,
		&p.Price, &p.SalePrice, &p.CoverImage, &p.MainImage,
		&p.Bedrooms, &p.Bathrooms, &p.SquareFeet, &p.Stories, &p.Garage,
		&p.SEOTitle, &p.SEODescription, &p.SEOKeywords,
		&p.IsFeatured, &p.IsPublished, &p.ViewsCount, &p.CreatedByID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// planValues lists the writable columns in insert order.
func planValues(p *model.HousePlan) []any {
	return []any{
		p.Title, p.Slug, p.ReferenceCode, nullableString(p.PublicPlanCode),
		p.Description, p.ShortDescription,
		string(p.PlanType), p.TotalAreaM2, p.TotalAreaSqft, p.NumberOfBedrooms, p.NumberOfBathrooms,
		p.NumberOfFloors, p.ParkingSpaces, p.BuildingWidth, p.BuildingLength,
		p.RoofType, p.StructureType, p.FoundationType, p.CeilingHeight, string(p.ConstructionComplexity),
		p.CostNote, p.SuitableClimate, p.IdealFor,
		p.MainFeatures, p.RoomDetails, p.ConstructionNotes, p.DesignPhilosophy,
		p.LifestyleSuitability, p.CustomizationPotential,
		p.TargetBuyer, p.BudgetCategory, p.KeySellingPoint, p.ProblemsThisPlanSolves, p.ArchitecturalStyle,
		p.LivingRooms, p.Kitchens, p.Offices, p.Terraces, p.StorageRooms,
		p.MinPlotWidth, p.MinPlotLength, p.ClimateCompatibility, p.EstimatedBuildTime,
		p.EstimatedCostLow, p.EstimatedCostHigh,
		p.FreePDFFile, p.PricePack1, p.PricePack2, p.PricePack3,
		p.GumroadPack2URL, p.GumroadPack3URL,
		p.Pack1Description, p.Pack2Description, p.Pack3Description,
		p.Price, p.SalePrice, p.CoverImage, p.MainImage,
		p.Bedrooms, p.Bathrooms, p.SquareFeet, p.Stories, p.Garage,
		p.SEOTitle, p.SEODescription, p.SEOKeywords,
		p.IsFeatured, p.IsPublished,
	}
}

var planWritableColumns = []string{
	"title", "slug", "reference_code", "public_plan_code",
	"description", "short_description",
	"plan_type", "total_area_m2", "total_area_sqft", "number_of_bedrooms", "number_of_bathrooms",
	"number_of_floors", "parking_spaces", "building_width", "building_length",
	"roof_type", "structure_type", "foundation_type", "ceiling_height", "construction_complexity",
	"estimated_construction_cost_note", "suitable_climate", "ideal_for",
	"main_features", "room_details", "construction_notes", "design_philosophy",
	"lifestyle_suitability", "customization_potential",
	"target_buyer", "budget_category", "key_selling_point", "problems_this_plan_solves", "architectural_style",
	"living_rooms", "kitchens", "offices", "terraces", "storage_rooms",
	"min_plot_width", "min_plot_length", "climate_compatibility", "estimated_build_time",
	"estimated_cost_low", "estimated_cost_high",
	"free_pdf_file", "price_pack_1", "price_pack_2", "price_pack_3",
	"gumroad_pack_2_url", "gumroad_pack_3_url",
	"pack1_description", "pack2_description", "pack3_description",
	"price", "sale_price", "cover_image", "main_image",
	"bedrooms", "bathrooms", "square_feet", "stories", "garage",
	"seo_title", "seo_description", "seo_keywords",
	"is_featured", "is_published",
}

var (
	planInsertSQL = buildPlanInsert()
	planUpdateSQL = buildPlanUpdate()
)

func buildPlanInsert() string {
	cols := append(append([]string{}, planWritableColumns...), "created_by_id")
	holders := make([]string, len(cols))
	for i := range cols {
		holders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO house_plans (%s) VALUES (%s) RETURNING id, created_at, updated_at",
		strings.Join(cols, ", "), strings.Join(holders, ", "),
	)
}

func buildPlanUpdate() string {
	sets := make([]string, len(planWritableColumns))
	for i, c := range planWritableColumns {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+2)
	}
	return fmt.Sprintf(
		"UPDATE house_plans SET %s WHERE id = $1 RETURNING updated_at",
		strings.Join(sets, ", "),
	)
}

// PlanRepository provides database access for house plans.
type PlanRepository struct {
	repo *Repository
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(repo *Repository) *PlanRepository {
	return &PlanRepository{repo: repo}
}

func planWriteError(err error, op string) error {
	if isUniqueViolation(err) {
		switch constraintName(err) {
		case "house_plans_slug_key":
			return ErrDuplicateSlug
		default:
			return ErrDuplicateCode
		}
	}
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to %s plan: %w", op, err)
}

// Create inserts a plan and its category links in one transaction.
func (r *PlanRepository) Create(ctx context.Context, plan *model.HousePlan, categoryIDs []int64) error {
	return r.repo.WithTx(ctx, func(tx pgx.Tx) error {
		args := append(planValues(plan), plan.CreatedByID)
		if err := tx.QueryRow(ctx, planInsertSQL, args...).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
			return planWriteError(err, "create")
		}
		return setPlanCategories(ctx, tx, plan.ID, categoryIDs)
	})
}

// Update rewrites a plan's fields and replaces its categories.
func (r *PlanRepository) Update(ctx context.Context, plan *model.HousePlan, categoryIDs []int64) error {
	return r.repo.WithTx(ctx, func(tx pgx.Tx) error {
		args := append([]any{plan.ID}, planValues(plan)...)
		if err := tx.QueryRow(ctx, planUpdateSQL, args...).Scan(&plan.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return planWriteError(err, "update")
		}
		return setPlanCategories(ctx, tx, plan.ID, categoryIDs)
	})
}

func setPlanCategories(ctx context.Context, q querier, planID int64, categoryIDs []int64) error {
	if _, err := q.Exec(ctx, `DELETE FROM house_plan_categories WHERE house_plan_id = $1`, planID); err != nil {
		return fmt.Errorf("failed to clear plan categories: %w", err)
	}
	if len(categoryIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO house_plan_categories (house_plan_id, category_id)
		SELECT $1, c.id FROM categories c WHERE c.id = ANY($2)
		ON CONFLICT DO NOTHING
	`
	if _, err := q.Exec(ctx, query, planID, pq.Array(categoryIDs)); err != nil {
		return fmt.Errorf("failed to set plan categories: %w", err)
	}
	return nil
}

// Delete removes a plan. Orders referencing it block the delete.
func (r *PlanRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.repo.pool.Exec(ctx, `DELETE FROM house_plans WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInUse
		}
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PlanRepository) getOne(ctx context.Context, where string, arg any) (*model.HousePlan, error) {
	query := `SELECT ` + planColumns + ` FROM house_plans p WHERE ` + where
	plan, err := scanPlan(r.repo.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	if err := r.attachCategories(ctx, []*model.HousePlan{plan}); err != nil {
		return nil, err
	}
	return plan, nil
}

// GetByID retrieves any plan by id.
func (r *PlanRepository) GetByID(ctx context.Context, id int64) (*model.HousePlan, error) {
	return r.getOne(ctx, "p.id = $1", id)
}

// GetBySlug retrieves a plan by slug. publishedOnly hides drafts.
func (r *PlanRepository) GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*model.HousePlan, error) {
	where := "p.slug = $1"
	if publishedOnly {
		where += " AND p.is_published"
	}
	return r.getOne(ctx, where, slug)
}

// GetByPublicCode retrieves a published plan by its MFP code.
func (r *PlanRepository) GetByPublicCode(ctx context.Context, code string) (*model.HousePlan, error) {
	return r.getOne(ctx, "UPPER(p.public_plan_code) = UPPER($1) AND p.is_published", code)
}

// FindByGumroadPermalink finds the plan whose pack URL path ends with permalink.
// Query strings and fragments on the stored URL are ignored.
// It returns the plan and the pack that matched.
func (r *PlanRepository) FindByGumroadPermalink(ctx context.Context, permalink string) (*model.HousePlan, model.Pack, error) {
	query := `SELECT ` + planColumns + `
		FROM house_plans p
		WHERE regexp_replace(p.gumroad_pack_2_url, '[?#].*$', '') ~* ('/' || $1 || '/?$')
		   OR regexp_replace(p.gumroad_pack_3_url, '[?#].*$', '') ~* ('/' || $1 || '/?$')
		ORDER BY p.id
		LIMIT 1`

	plan, err := scanPlan(r.repo.pool.QueryRow(ctx, query, regexpQuote(permalink)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to find plan by permalink: %w", err)
	}

	pack := model.PackPro
	if packURLMatches(plan.GumroadPack3URL, permalink) {
		pack = model.PackUltimate
	}
	return plan, pack, nil
}

// packURLMatches mirrors the SQL predicate of FindByGumroadPermalink.
func packURLMatches(packURL, permalink string) bool {
	if permalink == "" {
		return false
	}
	if i := strings.IndexAny(packURL, "?#"); i >= 0 {
		packURL = packURL[:i]
	}
	path := strings.TrimSuffix(strings.ToLower(packURL), "/")
	return strings.HasSuffix(path, "/"+strings.ToLower(permalink))
}

func regexpQuote(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SlugExists checks for a slug, ignoring excludeID.
func (r *PlanRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.repo.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM house_plans WHERE slug = $1 AND id <> $2)`, slug, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check plan slug: %w", err)
	}
	return exists, nil
}

// PublicCodeExists checks for a public code, ignoring excludeID.
func (r *PlanRepository) PublicCodeExists(ctx context.Context, code string, excludeID int64) (bool, error) {
	var exists bool
	err := r.repo.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM house_plans WHERE UPPER(public_plan_code) = UPPER($1) AND id <> $2)`, code, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check public code: %w", err)
	}
	return exists, nil
}

// NextReferenceSequence returns the next free sequence number for year.
func (r *PlanRepository) NextReferenceSequence(ctx context.Context, year int) (int, error) {
	rows, err := r.repo.pool.Query(ctx,
		`SELECT reference_code FROM house_plans WHERE reference_code LIKE $1`,
		fmt.Sprintf("%s-%%/%d", model.ReferencePrefix, year),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to list reference codes: %w", err)
	}
	defer rows.Close()

	highest := 0
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return 0, fmt.Errorf("failed to scan reference code: %w", err)
		}
		if n := model.ParseReferenceSequence(code); n > highest {
			highest = n
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating reference codes: %w", err)
	}
	return highest + 1, nil
}

// SetPublicCode assigns a public code to a plan.
func (r *PlanRepository) SetPublicCode(ctx context.Context, id int64, code string) error {
	result, err := r.repo.pool.Exec(ctx, `UPDATE house_plans SET public_plan_code = $2 WHERE id = $1`, id, code)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to set public code: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMissingPublicCodes returns plans without a public code.
func (r *PlanRepository) ListMissingPublicCodes(ctx context.Context) ([]*model.HousePlan, error) {
	query := `SELECT ` + planColumns + `
		FROM house_plans p
		WHERE p.public_plan_code IS NULL OR p.public_plan_code = ''
		ORDER BY p.id`
	return r.queryPlans(ctx, query)
}

// SetPublished flips publication.
func (r *PlanRepository) SetPublished(ctx context.Context, id int64, published bool) error {
	return r.setFlag(ctx, "is_published", id, published)
}

// SetFeatured flips the featured flag.
func (r *PlanRepository) SetFeatured(ctx context.Context, id int64, featured bool) error {
	return r.setFlag(ctx, "is_featured", id, featured)
}

func (r *PlanRepository) setFlag(ctx context.Context, column string, id int64, v bool) error {
	result, err := r.repo.pool.Exec(ctx, `UPDATE house_plans SET `+column+` = $2 WHERE id = $1`, id, v)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews adds n to the plan's view counter.
// This is called by the view flusher, not the request path.
func (r *PlanRepository) IncrementViews(ctx context.Context, id int64, n int64) error {
	_, err := r.repo.pool.Exec(ctx, `UPDATE house_plans SET views_count = views_count + $2 WHERE id = $1`, id, n)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return nil
}

// List returns a filtered, sorted page of plans.
func (r *PlanRepository) List(ctx context.Context, filter PlanFilter) (*PlanPage, error) {
	page := filter.Page.Normalize(12, 100)
	where, args := planWhere(filter)

	var total int64
	countQuery := `SELECT COUNT(*) FROM house_plans p WHERE ` + where
	if err := r.repo.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count plans: %w", err)
	}

	orderBy := planOrderBy[ParsePlanSort(string(filter.Sort))]
	query := fmt.Sprintf(`SELECT %s FROM house_plans p WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		planColumns, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, page.PerPage, page.Offset())

	plans, err := r.queryPlans(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &PlanPage{Plans: plans, Total: total, Page: page.Number, PerPage: page.PerPage}, nil
}

func planWhere(f PlanFilter) (string, []any) {
	clauses := []string{"TRUE"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.PublishedOnly {
		clauses = append(clauses, "p.is_published")
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		ph := arg("%" + escapeLike(q) + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(p.title ILIKE %[1]s OR p.description ILIKE %[1]s OR p.reference_code ILIKE %[1]s OR p.public_plan_code ILIKE %[1]s)", ph))
	}
	if f.CategorySlug != "" {
		clauses = append(clauses, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM house_plan_categories hpc
			JOIN categories c ON c.id = hpc.category_id
			WHERE hpc.house_plan_id = p.id AND c.slug = %s)`, arg(f.CategorySlug)))
	}
	if f.MinBedrooms != nil {
		clauses = append(clauses, "COALESCE(p.number_of_bedrooms, p.bedrooms, 0) >= "+arg(*f.MinBedrooms))
	}
	if f.MinBathrooms != nil {
		clauses = append(clauses, "COALESCE(p.number_of_bathrooms, p.bathrooms, 0) >= "+arg(*f.MinBathrooms))
	}
	if f.MaxPrice != nil {
		clauses = append(clauses, effectivePriceSQL+" <= "+arg(*f.MaxPrice))
	}
	if f.PlanType != "" {
		clauses = append(clauses, "p.plan_type = "+arg(string(f.PlanType)))
	}
	if f.FeaturedOnly {
		clauses = append(clauses, "p.is_featured")
	}
	return strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Featured returns up to n featured published plans.
func (r *PlanRepository) Featured(ctx context.Context, n int) ([]*model.HousePlan, error) {
	query := `SELECT ` + planColumns + `
		FROM house_plans p
		WHERE p.is_published AND p.is_featured
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1`
	return r.queryPlans(ctx, query, n)
}

// Recent returns the n newest published plans.
func (r *PlanRepository) Recent(ctx context.Context, n int) ([]*model.HousePlan, error) {
	query := `SELECT ` + planColumns + `
		FROM house_plans p
		WHERE p.is_published
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1`
	return r.queryPlans(ctx, query, n)
}

// Popular returns the n most viewed published plans.
func (r *PlanRepository) Popular(ctx context.Context, n int) ([]*model.HousePlan, error) {
	query := `SELECT ` + planColumns + `
		FROM house_plans p
		WHERE p.is_published
		ORDER BY p.views_count DESC, p.id DESC
		LIMIT $1`
	return r.queryPlans(ctx, query, n)
}

// Related returns published plans sharing a category with plan, topped up
// with recent plans when there are not enough.
func (r *PlanRepository) Related(ctx context.Context, plan *model.HousePlan, n int) ([]*model.HousePlan, error) {
	query := `SELECT ` + planColumns + `
		FROM house_plans p
		WHERE p.is_published AND p.id <> $1
		ORDER BY
			EXISTS (
				SELECT 1 FROM house_plan_categories hpc
				WHERE hpc.house_plan_id = p.id AND hpc.category_id = ANY($2)
			) DESC,
			p.created_at DESC, p.id DESC
		LIMIT $3`
	return r.queryPlans(ctx, query, plan.ID, pq.Array(plan.CategoryIDs()), n)
}

// AllPublishedSlugs feeds the sitemap.
func (r *PlanRepository) AllPublishedSlugs(ctx context.Context) ([]PlanSlug, error) {
	rows, err := r.repo.pool.Query(ctx,
		`SELECT slug, updated_at FROM house_plans WHERE is_published ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan slugs: %w", err)
	}
	defer rows.Close()

	var slugs []PlanSlug
	for rows.Next() {
		var s PlanSlug
		if err := rows.Scan(&s.Slug, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan slug: %w", err)
		}
		slugs = append(slugs, s)
	}
	return slugs, rows.Err()
}

// Stats returns plan counts for the dashboard.
func (r *PlanRepository) Stats(ctx context.Context) (PlanStats, error) {
	var s PlanStats
	err := r.repo.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_published),
		       COUNT(*) FILTER (WHERE is_featured),
		       COALESCE(SUM(views_count), 0)
		FROM house_plans`,
	).Scan(&s.Total, &s.Published, &s.Featured, &s.TotalViews)
	if err != nil {
		return s, fmt.Errorf("failed to load plan stats: %w", err)
	}
	return s, nil
}

func (r *PlanRepository) queryPlans(ctx context.Context, query string, args ...any) ([]*model.HousePlan, error) {
	rows, err := r.repo.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	plans := []*model.HousePlan{}
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plans: %w", err)
	}

	if err := r.attachCategories(ctx, plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// attachCategories loads categories for all plans in one query.
func (r *PlanRepository) attachCategories(ctx context.Context, plans []*model.HousePlan) error {
	if len(plans) == 0 {
		return nil
	}
	byID := make(map[int64]*model.HousePlan, len(plans))
	ids := make([]int64, 0, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.repo.pool.Query(ctx, `
		SELECT hpc.house_plan_id, c.id, c.name, c.slug, c.description, c.created_at
		FROM house_plan_categories hpc
		JOIN categories c ON c.id = hpc.category_id
		WHERE hpc.house_plan_id = ANY($1)
		ORDER BY c.name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load plan categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var planID int64
		var c model.Category
		if err := rows.Scan(&planID, &c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan plan category: %w", err)
		}
		if p := byID[planID]; p != nil {
			p.Categories = append(p.Categories, c)
		}
	}
	return rows.Err()
}
