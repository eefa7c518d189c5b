package apitest

import (
	"bufio"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

func (b *Backend) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"detail": "Malformed request."})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acct := range b.accounts {
		if (acct.Username == req.Username || acct.Email == req.Username) && acct.Password == req.Password {
			access, refresh := b.issueTokensLocked(acct.Username)
			JSON(w, http.StatusOK, map[string]string{"access": access, "refresh": refresh})
			return
		}
	}
	JSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = decode(r, &req)

	b.mu.Lock()
	defer b.mu.Unlock()
	username, ok := b.refresh[req.Refresh]
	if !ok {
		JSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	access := b.nextAccessLocked(username)
	b.access[access] = username
	JSON(w, http.StatusOK, map[string]string{"access": access})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
	}
	if err := decode(r, &req); err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"detail": "Malformed request."})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	fieldErrors := map[string][]string{}
	for _, acct := range b.accounts {
		if acct.Username == req.Username {
			fieldErrors["username"] = []string{"A user with that username already exists."}
		}
		if req.Email != "" && acct.Email == req.Email {
			fieldErrors["email"] = []string{"already registered"}
		}
	}
	if len(fieldErrors) > 0 {
		JSON(w, http.StatusBadRequest, fieldErrors)
		return
	}

	acct := b.addAccountLocked(Account{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
	})
	if !b.registerTokens {
		JSON(w, http.StatusCreated, map[string]any{"id": acct.ID, "username": acct.Username, "email": acct.Email})
		return
	}
	access, refresh := b.issueTokensLocked(acct.Username)
	JSON(w, http.StatusCreated, map[string]any{"access": access, "refresh": refresh})
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct := b.accounts[currentUsername(r)]
	if acct == nil {
		JSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	favorites := append([]int{}, acct.Favorites...)
	JSON(w, http.StatusOK, map[string]any{
		"id":         acct.ID,
		"username":   acct.Username,
		"first_name": acct.FirstName,
		"last_name":  acct.LastName,
		"email":      acct.Email,
		"favorites":  favorites,
		"is_staff":   acct.IsStaff,
	})
}

func (b *Backend) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	username := currentUsername(r)
	delete(b.accounts, username)
	for token, owner := range b.access {
		if owner == username {
			delete(b.access, token)
		}
	}
	for token, owner := range b.refresh {
		if owner == username {
			delete(b.refresh, token)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VehicleID any `json:"vehicle_id"`
	}
	if err := decode(r, &req); err != nil || toInt(req.VehicleID) == 0 {
		JSON(w, http.StatusBadRequest, map[string][]string{"vehicle_id": {"This field is required."}})
		return
	}
	id := toInt(req.VehicleID)

	b.mu.Lock()
	defer b.mu.Unlock()
	acct := b.accounts[currentUsername(r)]
	for i, fav := range acct.Favorites {
		if fav == id {
			acct.Favorites = append(acct.Favorites[:i], acct.Favorites[i+1:]...)
			JSON(w, http.StatusOK, map[string]any{"status": "removed", "vehicle_id": id})
			return
		}
	}
	acct.Favorites = append(acct.Favorites, id)
	JSON(w, http.StatusOK, map[string]any{"status": "added", "vehicle_id": id})
}

func (b *Backend) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct := b.accounts[currentUsername(r)]
	out := []Vehicle{}
	for _, id := range acct.Favorites {
		if v := b.findVehicleLocked(id); v != nil {
			out = append(out, v)
		}
	}
	JSON(w, http.StatusOK, out)
}

func (b *Backend) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Vehicle, 0, len(b.vehicles))
	for _, v := range b.vehicles {
		if makeName := q.Get("make_name"); makeName != "" && !strings.EqualFold(fmt.Sprint(v["make_name"]), makeName) {
			continue
		}
		if !matchesInt(q.Get("make_id"), v["make_id"]) ||
			!matchesInt(q.Get("model_id"), v["model_id"]) ||
			!matchesInt(q.Get("year"), v["year"]) {
			continue
		}
		if term := strings.ToLower(q.Get("q")); term != "" &&
			!strings.Contains(strings.ToLower(fmt.Sprint(v["vehicle_display_name"])), term) {
			continue
		}
		out = append(out, v)
	}

	switch q.Get("sort_by") {
	case "views":
		sort.SliceStable(out, func(i, j int) bool { return toInt(out[i]["views"]) > toInt(out[j]["views"]) })
	case "year_desc":
		sort.SliceStable(out, func(i, j int) bool { return toInt(out[i]["year"]) > toInt(out[j]["year"]) })
	}
	JSON(w, http.StatusOK, map[string]any{"count": len(out), "results": out})
}

func (b *Backend) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.findVehicleLocked(toInt(chi.URLParam(r, "id")))
	if v == nil {
		JSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	JSON(w, http.StatusOK, v)
}

func (b *Backend) handleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := decode(r, &req); err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed request"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.findVehicleLocked(toInt(chi.URLParam(r, "id")))
	if v == nil {
		JSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	for _, field := range []string{"description", "custom_title"} {
		if value, ok := req[field]; ok {
			v[field] = value
		}
	}
	JSON(w, http.StatusOK, v)
}

func (b *Backend) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	_, header, err := r.FormFile("image")
	if err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"error": "No image provided"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.findVehicleLocked(toInt(chi.URLParam(r, "id")))
	if v == nil {
		JSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	images, _ := v["image_data"].([]map[string]any)
	b.nextImageID++
	img := map[string]any{
		"id":         b.nextImageID,
		"image":      "media/vehicle_images/" + header.Filename,
		"image_url":  nil,
		"is_primary": len(images) == 0,
	}
	v["image_data"] = append(images, img)
	JSON(w, http.StatusCreated, img)
}

func (b *Backend) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id := toInt(chi.URLParam(r, "id"))

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range b.vehicles {
		images, _ := v["image_data"].([]map[string]any)
		for i, img := range images {
			if toInt(img["id"]) == id {
				v["image_data"] = append(images[:i], images[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
	}
	JSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

func (b *Backend) handleAddReview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VehicleID any    `json:"vehicle_id"`
		Rating    any    `json:"rating"`
		Comment   string `json:"comment"`
	}
	if err := decode(r, &req); err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"detail": "Malformed request."})
		return
	}
	rating := toInt(req.Rating)
	if rating < 1 || rating > 5 {
		JSON(w, http.StatusBadRequest, map[string][]string{"rating": {"Ensure this value is between 1 and 5."}})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.findVehicleLocked(toInt(req.VehicleID))
	if v == nil {
		JSON(w, http.StatusBadRequest, map[string][]string{"vehicle_id": {"Invalid vehicle."}})
		return
	}
	acct := b.accounts[currentUsername(r)]
	b.nextReviewID++
	review := map[string]any{
		"id":         b.nextReviewID,
		"user_id":    acct.ID,
		"user":       acct.Username,
		"rating":     rating,
		"comment":    req.Comment,
		"created_at": time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
	}
	reviews, _ := v["reviews"].([]map[string]any)
	v["reviews"] = append(reviews, review)
	JSON(w, http.StatusCreated, review)
}

func (b *Backend) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id := toInt(chi.URLParam(r, "id"))

	b.mu.Lock()
	defer b.mu.Unlock()
	acct := b.accounts[currentUsername(r)]
	for _, v := range b.vehicles {
		reviews, _ := v["reviews"].([]map[string]any)
		for i, review := range reviews {
			if toInt(review["id"]) != id {
				continue
			}
			if toInt(review["user_id"]) != acct.ID && !acct.IsStaff {
				JSON(w, http.StatusForbidden, map[string]string{"detail": "You do not have permission to perform this action."})
				return
			}
			v["reviews"] = append(reviews[:i], reviews[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	JSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
}

var (
	makes = []map[string]any{
		{"makeId": 1, "makeName": "Toyota"},
		{"makeId": 2, "makeName": "Ford"},
	}
	models = []map[string]any{
		{"modelId": 10, "makeId": 1, "modelName": "Corolla"},
		{"modelId": 11, "makeId": 1, "modelName": "Supra"},
		{"modelId": 20, "makeId": 2, "modelName": "Mustang"},
	}
)

func (b *Backend) handleMakes(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, makes)
}

func (b *Backend) handleModels(w http.ResponseWriter, r *http.Request) {
	makeID := toInt(r.URL.Query().Get("make_id"))
	out := []map[string]any{}
	for _, m := range models {
		if makeID == 0 || m["makeId"] == makeID {
			out = append(out, m)
		}
	}
	JSON(w, http.StatusOK, out)
}

func (b *Backend) handleBodies(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, []map[string]any{{"bodyId": 1, "bodyName": "Sedan"}, {"bodyId": 2, "bodyName": "Coupe"}})
}

func (b *Backend) handleDriveTypes(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, []map[string]any{{"driveTypeId": 1, "driveTypeName": "FWD"}, {"driveTypeId": 2, "driveTypeName": "RWD"}})
}

func (b *Backend) handleStats(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	reviews := 0
	for _, v := range b.vehicles {
		list, _ := v["reviews"].([]map[string]any)
		reviews += len(list)
	}
	JSON(w, http.StatusOK, map[string]any{
		"total_vehicles": len(b.vehicles),
		"total_users":    len(b.accounts),
		"total_reviews":  reviews,
		"daily_searches": []map[string]any{
			{"query": "toyota", "count": 3, "date": "2026-10-01"},
		},
		"monthly_searches": []map[string]any{
			{"query": "mustang", "count": 12, "date": "2026-09"},
		},
	})
}

// handleUploadVehicles counts the data rows of the uploaded file. Parsing the
// rows is the real server's job.
func (b *Backend) handleUploadVehicles(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	defer file.Close()

	rows := 0
	var rowErrors []string
	scanner := bufio.NewScanner(file)
	for line := 0; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		switch {
		case line == 0 || text == "":
		case strings.Count(text, ",") < 2:
			rowErrors = append(rowErrors, "row "+strconv.Itoa(line)+": not enough columns")
		default:
			rows++
		}
	}
	JSON(w, http.StatusOK, map[string]any{"imported_count": rows, "errors": rowErrors})
}

func (b *Backend) handleTemplate(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	_, _ = w.Write([]byte("make_name,model_name,year,engine,engine_cc\n"))
}

func (b *Backend) handleListFeatures(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.features
	if out == nil {
		out = []map[string]any{}
	}
	JSON(w, http.StatusOK, out)
}

func (b *Backend) handleReplaceFeatures(w http.ResponseWriter, r *http.Request) {
	var req []map[string]any
	if err := decode(r, &req); err != nil {
		JSON(w, http.StatusBadRequest, map[string]string{"error": "Expected a list of features"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, f := range req {
		f["id"] = i + 1
	}
	b.features = req
	JSON(w, http.StatusOK, req)
}

func (b *Backend) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := decode(r, &req); err != nil || req.Message == "" {
		JSON(w, http.StatusBadRequest, map[string]string{"error": "Message is required"})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"response": "You asked: " + req.Message})
}

func (b *Backend) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	_ = decode(r, &req)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acct := range b.accounts {
		if acct.Email != "" && acct.Email == req.Email {
			JSON(w, http.StatusOK, map[string]string{"message": "Password reset email sent"})
			return
		}
	}
	JSON(w, http.StatusNotFound, map[string]string{"error": "User with this email does not exist"})
}

func (b *Backend) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UIDB64   string `json:"uidb64"`
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	_ = decode(r, &req)

	b.mu.Lock()
	defer b.mu.Unlock()
	expected, ok := b.resetTokens[req.UIDB64]
	if !ok || expected != req.Token {
		JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid or expired token"})
		return
	}
	delete(b.resetTokens, req.UIDB64)
	for _, acct := range b.accounts {
		if "reset-"+strconv.Itoa(acct.ID) == req.Token {
			acct.Password = req.Password
		}
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

// matchesInt reports whether an optional integer query parameter matches value.
func matchesInt(param string, value any) bool {
	return param == "" || toInt(param) == toInt(value)
}
