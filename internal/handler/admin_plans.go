package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/myfreehouseplans/catalog/internal/auth"
	"github.com/myfreehouseplans/catalog/internal/model"
	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/service"
)

const adminPerPage = 25

// protectedPlanFields are set by the system, never by the plan form.
var protectedPlanFields = []string{
	"id", "slug", "reference_code", "public_plan_code", "views_count",
	"created_by_id", "created_at", "updated_at", "categories",
}

type fieldSpec struct {
	Label string
	Name  string
}

type formField struct {
	Label string
	Name  string
	Value string
}

var (
	planNumberFields = []fieldSpec{
		{"Total area (m²)", "total_area_m2"},
		{"Total area (sq ft)", "total_area_sqft"},
		{"Bedrooms", "number_of_bedrooms"},
		{"Bathrooms", "number_of_bathrooms"},
		{"Floors", "number_of_floors"},
		{"Parking spaces", "parking_spaces"},
		{"Building width (m)", "building_width"},
		{"Building length (m)", "building_length"},
		{"Ceiling height (m)", "ceiling_height"},
		{"Living rooms", "living_rooms"},
		{"Kitchens", "kitchens"},
		{"Offices", "offices"},
		{"Terraces", "terraces"},
		{"Storage rooms", "storage_rooms"},
		{"Minimum plot width (m)", "min_plot_width"},
		{"Minimum plot length (m)", "min_plot_length"},
		{"Estimated cost, low", "estimated_cost_low"},
		{"Estimated cost, high", "estimated_cost_high"},
	}
	planTextFields = []fieldSpec{
		{"Roof type", "roof_type"},
		{"Structure type", "structure_type"},
		{"Foundation type", "foundation_type"},
		{"Construction cost note", "estimated_construction_cost_note"},
		{"Suitable climate", "suitable_climate"},
		{"Climate compatibility", "climate_compatibility"},
		{"Estimated build time", "estimated_build_time"},
		{"Ideal for", "ideal_for"},
		{"Target buyer", "target_buyer"},
		{"Budget category", "budget_category"},
		{"Architectural style", "architectural_style"},
		{"Key selling point", "key_selling_point"},
	}
	planRichFields = []fieldSpec{
		{"Main features", "main_features"},
		{"Room details", "room_details"},
		{"Construction notes", "construction_notes"},
		{"Design philosophy", "design_philosophy"},
		{"Lifestyle suitability", "lifestyle_suitability"},
		{"Customization potential", "customization_potential"},
		{"Problems this plan solves", "problems_this_plan_solves"},
	}
)

func planFields(plan *model.HousePlan, specs []fieldSpec) []formField {
	values := encodeForm(plan, "json")
	out := make([]formField, 0, len(specs))
	for _, s := range specs {
		out = append(out, formField{Label: s.Label, Name: s.Name, Value: values.Get(s.Name)})
	}
	return out
}

// planUploads holds files stored while handling one plan form.
type planUploads struct {
	freePDF    string
	coverImage string
	mainImage  string
}

// Plans handles GET /admin/plans.
func (h *AdminHandler) Plans(w http.ResponseWriter, r *http.Request) {
	page, err := h.plans.List(r.Context(), repository.PlanFilter{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Sort:  repository.SortNewest,
		Page:  repository.Page{Number: pageParam(r), PerPage: adminPerPage},
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.adminPage(w, r, http.StatusOK, "admin/plans", "Plans", page, nil, nil)
}

// NewPlan handles GET /admin/plans/new.
func (h *AdminHandler) NewPlan(w http.ResponseWriter, r *http.Request) {
	h.renderPlanForm(w, r, http.StatusOK, &model.HousePlan{}, nil, true, nil)
}

// CreatePlan handles POST /admin/plans/new.
func (h *AdminHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}

	var plan model.HousePlan
	categoryIDs := parseIDs(r.PostForm["category_ids"])
	if errs := decodeForm(r.PostForm, &plan, "json", protectedPlanFields...); len(errs) > 0 {
		h.renderPlanForm(w, r, http.StatusUnprocessableEntity, &plan, categoryIDs, true, errs)
		return
	}

	saved, errs, err := h.savePlanFiles(r, &plan)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if len(errs) > 0 {
		h.renderPlanForm(w, r, http.StatusUnprocessableEntity, &plan, categoryIDs, true, errs)
		return
	}

	var creatorID *int64
	if u := auth.UserFromContext(r.Context()); u != nil {
		creatorID = &u.ID
	}
	created, err := h.plans.Create(r.Context(), service.PlanInput{Plan: plan, CategoryIDs: categoryIDs}, creatorID)
	if err != nil {
		h.discardPlanFiles(saved)
		if errors.Is(err, service.ErrValidation) {
			h.renderPlanForm(w, r, http.StatusUnprocessableEntity, &plan, categoryIDs, true, service.FieldErrors(err))
			return
		}
		h.serverError(w, r, err)
		return
	}

	h.logger.Info("plan_created", "plan_id", created.ID, "reference_code", created.ReferenceCode)
	h.setFlash(w, "success", "Plan "+created.DisplayCode()+" created.")
	redirect(w, r, "/admin/plans/"+strconv.FormatInt(created.ID, 10)+"/edit")
}

// EditPlan handles GET /admin/plans/{id}/edit.
func (h *AdminHandler) EditPlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.loadPlan(w, r)
	if !ok {
		return
	}
	ids := make([]int64, 0, len(plan.Categories))
	for _, c := range plan.Categories {
		ids = append(ids, c.ID)
	}
	h.renderPlanForm(w, r, http.StatusOK, plan, ids, false, nil)
}

// UpdatePlan handles POST /admin/plans/{id}/edit.
func (h *AdminHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadPlan(w, r)
	if !ok {
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}

	plan := *existing
	categoryIDs := parseIDs(r.PostForm["category_ids"])
	if errs := decodeForm(r.PostForm, &plan, "json", protectedPlanFields...); len(errs) > 0 {
		h.renderPlanForm(w, r, http.StatusUnprocessableEntity, &plan, categoryIDs, false, errs)
		return
	}

	saved, errs, err := h.savePlanFiles(r, &plan)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if len(errs) > 0 {
		h.renderPlanForm(w, r, http.StatusUnprocessableEntity, &plan, categoryIDs, false, errs)
		return
	}

	if _, err := h.plans.Update(r.Context(), existing.ID, service.PlanInput{Plan: plan, CategoryIDs: categoryIDs}); err != nil {
		h.discardPlanFiles(saved)
		switch {
		case errors.Is(err, service.ErrValidation):
			h.renderPlanForm(w, r, http.StatusUnprocessableEntity, &plan, categoryIDs, false, service.FieldErrors(err))
		default:
			h.handleServiceError(w, r, err)
		}
		return
	}

	// Replaced files are no longer referenced.
	if saved.freePDF != "" && existing.FreePDFFile != "" {
		h.uploads.RemoveProtected(existing.FreePDFFile)
	}
	if saved.coverImage != "" && existing.CoverImage != "" {
		h.uploads.RemoveImage(existing.CoverImage)
	}
	if saved.mainImage != "" && existing.MainImage != "" {
		h.uploads.RemoveImage(existing.MainImage)
	}

	h.logger.Info("plan_updated", "plan_id", existing.ID)
	h.setFlash(w, "success", "Plan saved.")
	redirect(w, r, "/admin/plans/"+strconv.FormatInt(existing.ID, 10)+"/edit")
}

// DeletePlan handles POST /admin/plans/{id}/delete.
func (h *AdminHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.loadPlan(w, r)
	if !ok {
		return
	}

	if err := h.plans.Delete(r.Context(), plan.ID); err != nil {
		if errors.Is(err, service.ErrPlanInUse) {
			h.setFlash(w, "error", "This plan has orders. Unpublish it instead of deleting it.")
			redirect(w, r, "/admin/plans")
			return
		}
		h.handleServiceError(w, r, err)
		return
	}

	h.uploads.RemoveProtected(plan.FreePDFFile)
	h.uploads.RemoveImage(plan.CoverImage)
	h.uploads.RemoveImage(plan.MainImage)

	h.logger.Info("plan_deleted", "plan_id", plan.ID, "reference_code", plan.ReferenceCode)
	h.setFlash(w, "success", "Plan "+plan.DisplayCode()+" deleted.")
	redirect(w, r, "/admin/plans")
}

// TogglePublish handles POST /admin/plans/{id}/publish.
func (h *AdminHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return
	}
	published, err := h.plans.TogglePublish(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if published {
		h.setFlash(w, "success", "Plan published.")
	} else {
		h.setFlash(w, "success", "Plan unpublished.")
	}
	redirect(w, r, backTo(r, "/admin/plans"))
}

// ToggleFeatured handles POST /admin/plans/{id}/feature.
func (h *AdminHandler) ToggleFeatured(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return
	}
	featured, err := h.plans.ToggleFeatured(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if featured {
		h.setFlash(w, "success", "Plan featured on the home page.")
	} else {
		h.setFlash(w, "success", "Plan removed from the home page.")
	}
	redirect(w, r, backTo(r, "/admin/plans"))
}

func (h *AdminHandler) loadPlan(w http.ResponseWriter, r *http.Request) (*model.HousePlan, bool) {
	id, ok := idParam(r, "id")
	if !ok {
		h.NotFound(w, r)
		return nil, false
	}
	plan, err := h.plans.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}
	return plan, true
}

func (h *AdminHandler) renderPlanForm(w http.ResponseWriter, r *http.Request, status int, plan *model.HousePlan, categoryIDs []int64, isNew bool, errs map[string]string) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	selected := make(map[int64]bool, len(categoryIDs))
	for _, id := range categoryIDs {
		selected[id] = true
	}

	title := "New plan"
	if !isNew {
		title = "Edit " + plan.DisplayCode()
	}
	h.adminPage(w, r, status, "admin/plan_form", title, map[string]any{
		"Plan":         plan,
		"IsNew":        isNew,
		"PlanTypes":    model.PlanTypes(),
		"Complexities": model.Complexities(),
		"Categories":   categories,
		"Selected":     selected,
		"NumberFields": planFields(plan, planNumberFields),
		"TextFields":   planFields(plan, planTextFields),
		"RichFields":   planFields(plan, planRichFields),
	}, nil, errs)
}

// savePlanFiles stores the files sent with a plan form and points the plan
// at them. Rejected files are reported per field and nothing is kept.
func (h *AdminHandler) savePlanFiles(r *http.Request, plan *model.HousePlan) (planUploads, map[string]string, error) {
	var saved planUploads
	errs := make(map[string]string)

	store := func(field string, save func(multipart.File, *multipart.FileHeader) (string, error)) (string, error) {
		file, header, err := formFile(r, field)
		if err != nil || file == nil {
			return "", err
		}
		defer file.Close()
		rel, err := save(file, header)
		if err != nil {
			if msg, ok := uploadErrorMessage(err); ok {
				errs[field] = msg
				return "", nil
			}
			return "", err
		}
		return rel, nil
	}

	var err error
	if saved.freePDF, err = store("free_pdf_file", func(f multipart.File, fh *multipart.FileHeader) (string, error) {
		return h.uploads.SaveProtected(f, fh, "plans", ".pdf")
	}); err != nil {
		h.discardPlanFiles(saved)
		return planUploads{}, nil, err
	}
	if saved.coverImage, err = store("cover_image_file", func(f multipart.File, fh *multipart.FileHeader) (string, error) {
		return h.uploads.SaveImage(f, fh, "plans")
	}); err != nil {
		h.discardPlanFiles(saved)
		return planUploads{}, nil, err
	}
	if saved.mainImage, err = store("main_image_file", func(f multipart.File, fh *multipart.FileHeader) (string, error) {
		return h.uploads.SaveImage(f, fh, "plans")
	}); err != nil {
		h.discardPlanFiles(saved)
		return planUploads{}, nil, err
	}

	if len(errs) > 0 {
		h.discardPlanFiles(saved)
		if msg, ok := errs["cover_image_file"]; ok {
			errs["image"] = msg
		} else if msg, ok := errs["main_image_file"]; ok {
			errs["image"] = msg
		}
		return planUploads{}, errs, nil
	}

	if saved.freePDF != "" {
		plan.FreePDFFile = saved.freePDF
	}
	if saved.coverImage != "" {
		plan.CoverImage = saved.coverImage
	}
	if saved.mainImage != "" {
		plan.MainImage = saved.mainImage
	}
	return saved, nil, nil
}

func (h *AdminHandler) discardPlanFiles(saved planUploads) {
	if saved.freePDF != "" {
		h.uploads.RemoveProtected(saved.freePDF)
	}
	if saved.coverImage != "" {
		h.uploads.RemoveImage(saved.coverImage)
	}
	if saved.mainImage != "" {
		h.uploads.RemoveImage(saved.mainImage)
	}
}

// parseMultipart parses a form that may carry files and answers 400 on failure.
func (h *AdminHandler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.errorPage(w, r, http.StatusBadRequest, "Bad request", "The form could not be read.")
		return false
	}
	return true
}

// backTo returns the admin page the request came from, or fallback.
func backTo(r *http.Request, fallback string) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Host != r.Host || !strings.HasPrefix(ref.Path, "/admin") {
		return fallback
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}

// FAQs handles GET /admin/plans/{id}/faqs.
func (h *AdminHandler) FAQs(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.loadPlan(w, r)
	if !ok {
		return
	}
	h.renderFAQs(w, r, http.StatusOK, plan, nil, nil, nil)
}

// CreateFAQ handles POST /admin/plans/{id}/faqs.
func (h *AdminHandler) CreateFAQ(w http.ResponseWriter, r *http.Request) {
	plan, ok := h.loadPlan(w, r)
	if !ok {
		return
	}
	in, form, errs := decodeFAQ(r)
	if len(errs) == 0 {
		_, err := h.faqs.Create(r.Context(), plan.ID, in)
		if err == nil {
			h.setFlash(w, "success", "Question added.")
			redirect(w, r, faqsPath(plan.ID))
			return
		}
		if !errors.Is(err, service.ErrValidation) {
			h.handleServiceError(w, r, err)
			return
		}
		errs = service.FieldErrors(err)
	}
	h.renderFAQs(w, r, http.StatusUnprocessableEntity, plan, nil, form, errs)
}

// EditFAQ handles GET /admin/plans/{id}/faqs/{fid}/edit.
func (h *AdminHandler) EditFAQ(w http.ResponseWriter, r *http.Request) {
	plan, faq, ok := h.loadFAQ(w, r)
	if !ok {
		return
	}
	form := encodeForm(service.FAQInput{
		Question:    faq.Question,
		Answer:      faq.Answer,
		PackContext: faq.PackContext,
		Position:    faq.Position,
	}, "form")
	h.renderFAQs(w, r, http.StatusOK, plan, faq, form, nil)
}

// UpdateFAQ handles POST /admin/plans/{id}/faqs/{fid}/edit.
func (h *AdminHandler) UpdateFAQ(w http.ResponseWriter, r *http.Request) {
	plan, faq, ok := h.loadFAQ(w, r)
	if !ok {
		return
	}
	in, form, errs := decodeFAQ(r)
	if len(errs) == 0 {
		_, err := h.faqs.Update(r.Context(), plan.ID, faq.ID, in)
		if err == nil {
			h.setFlash(w, "success", "Question saved.")
			redirect(w, r, faqsPath(plan.ID))
			return
		}
		if !errors.Is(err, service.ErrValidation) {
			h.handleServiceError(w, r, err)
			return
		}
		errs = service.FieldErrors(err)
	}
	h.renderFAQs(w, r, http.StatusUnprocessableEntity, plan, faq, form, errs)
}

// DeleteFAQ handles POST /admin/plans/{id}/faqs/{fid}/delete.
func (h *AdminHandler) DeleteFAQ(w http.ResponseWriter, r *http.Request) {
	plan, faq, ok := h.loadFAQ(w, r)
	if !ok {
		return
	}
	if err := h.faqs.Delete(r.Context(), plan.ID, faq.ID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.setFlash(w, "success", "Question deleted.")
	redirect(w, r, faqsPath(plan.ID))
}

func (h *AdminHandler) loadFAQ(w http.ResponseWriter, r *http.Request) (*model.HousePlan, *model.PlanFAQ, bool) {
	plan, ok := h.loadPlan(w, r)
	if !ok {
		return nil, nil, false
	}
	fid, ok := idParam(r, "fid")
	if !ok {
		h.NotFound(w, r)
		return nil, nil, false
	}
	faq, err := h.faqs.Get(r.Context(), plan.ID, fid)
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, nil, false
	}
	return plan, faq, true
}

func (h *AdminHandler) renderFAQs(w http.ResponseWriter, r *http.Request, status int, plan *model.HousePlan, edit *model.PlanFAQ, form url.Values, errs map[string]string) {
	faqs, err := h.faqs.List(r.Context(), plan.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if form == nil {
		form = url.Values{"position": {strconv.Itoa(len(faqs))}}
	}

	contexts := []string{""}
	for _, p := range packs {
		contexts = append(contexts, p.FAQContext())
	}
	h.adminPage(w, r, status, "admin/faqs", "FAQs for "+plan.DisplayCode(), map[string]any{
		"Plan":     plan,
		"FAQs":     faqs,
		"Edit":     edit,
		"Contexts": contexts,
	}, form, errs)
}

func decodeFAQ(r *http.Request) (service.FAQInput, url.Values, map[string]string) {
	var in service.FAQInput
	if err := r.ParseForm(); err != nil {
		return in, url.Values{}, map[string]string{"question": "The form could not be read."}
	}
	errs := decodeForm(r.PostForm, &in, "form")
	return in, r.PostForm, errs
}

func faqsPath(planID int64) string {
	return "/admin/plans/" + strconv.FormatInt(planID, 10) + "/faqs"
}
