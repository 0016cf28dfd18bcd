package httpserver

import (
	"net/http"
	"strconv"

	"gaunroots/internal/alerts"
	"gaunroots/internal/market"
	"gaunroots/internal/store"
)

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil
}

// -- Users --

type credentialsRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Type == "" {
		writeDetail(w, http.StatusBadRequest, "name and type are required")
		return
	}
	user, err := s.deps.Ledger.Register(r.Context(), req.Name, req.Type)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.deps.Ledger.Login(r.Context(), req.Name, req.Type)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := s.deps.Ledger.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type userUpdateRequest struct {
	Credits *int      `json:"credits"`
	Tokens  *int      `json:"tokens"`
	Friends *[]string `json:"friends"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req userUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.deps.Ledger.Update(r.Context(), id, store.UserUpdate{
		Credits: req.Credits,
		Tokens:  req.Tokens,
		Friends: req.Friends,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleAddCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	amount, err := strconv.Atoi(r.URL.Query().Get("amount"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "amount must be an integer")
		return
	}
	user, err := s.deps.Ledger.AddCredits(r.Context(), id, amount)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleAddFriend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	friendName := r.URL.Query().Get("friend_name")
	if friendName == "" {
		writeDetail(w, http.StatusBadRequest, "friend_name is required")
		return
	}
	user, err := s.deps.Ledger.AddFriend(r.Context(), id, friendName)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	balance, err := s.deps.Ledger.Tokens(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

type purchaseRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) handlePurchaseTokens(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req purchaseRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.deps.Ledger.Purchase(r.Context(), id, req.Quantity)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUseToken(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	remaining, err := s.deps.Ledger.UseToken(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"remainingTokens": remaining})
}

// -- Products --

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.deps.Market.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if products == nil {
		products = []store.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleSellerProducts(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := pathID(r, "sellerId")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid seller id")
		return
	}
	products, err := s.deps.Market.ListBySeller(r.Context(), sellerID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if products == nil {
		products = []store.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

type productRequest struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Phone       string  `json:"phone"`
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	sellerID, err := strconv.ParseInt(r.URL.Query().Get("seller_id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "seller_id must be an integer")
		return
	}
	sellerName := r.URL.Query().Get("seller_name")

	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Price < 0 {
		writeDetail(w, http.StatusBadRequest, "price must be non-negative")
		return
	}

	product, err := s.deps.Market.Create(r.Context(), market.ListingInput{
		SellerID:    sellerID,
		SellerName:  sellerName,
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Type:        req.Type,
		Phone:       req.Phone,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	removed, err := s.deps.Market.Delete(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !removed {
		writeDetail(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product removed successfully"})
}

func (s *Server) handleProductView(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid product id")
		return
	}
	product, err := s.deps.Market.IncrementViews(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// -- Prediction --

type predictRequest struct {
	Image  string `json:"image"`
	UserID int64  `json:"user_id"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Image == "" {
		writeDetail(w, http.StatusBadRequest, "image is required")
		return
	}

	result, err := s.deps.Classifier.Classify(r.Context(), req.Image)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if req.UserID > 0 {
		if _, err := s.deps.Store.CreateDetectionRecord(r.Context(), store.DetectionRecord{
			UserID:     req.UserID,
			Image:      req.Image,
			Prediction: result.Prediction,
			Confidence: result.Confidence,
		}); err != nil {
			s.logger.Warn("failed saving detection record", "user_id", req.UserID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDetectionHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid user id")
		return
	}
	records, err := s.deps.Store.ListUserDetections(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []store.DetectionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleDeleteDetection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid record id")
		return
	}
	removed, err := s.deps.Store.DeleteDetectionRecord(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !removed {
		writeDetail(w, http.StatusNotFound, "detection record not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Detection record removed"})
}

// -- Alerts --

type alertRegistrationRequest struct {
	FarmerName  string `json:"farmerName"`
	PhoneNumber string `json:"phoneNumber"`
	CropTypes   string `json:"cropTypes"`
	AlertRadius int    `json:"alertRadius"`
}

func (s *Server) handleRegisterAlerts(w http.ResponseWriter, r *http.Request) {
	var req alertRegistrationRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.FarmerName == "" || req.PhoneNumber == "" {
		writeDetail(w, http.StatusBadRequest, "farmerName and phoneNumber are required")
		return
	}

	reg, err := s.deps.Alerts.RegisterAlert(r.Context(), alerts.RegistrationInput{
		FarmerName:  req.FarmerName,
		PhoneNumber: req.PhoneNumber,
		CropTypes:   req.CropTypes,
		AlertRadius: req.AlertRadius,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Alert registration successful for " + reg.Location,
		"registration": reg,
	})
}

type diseaseReportRequest struct {
	DiseaseName   string `json:"diseaseName"`
	CropType      string `json:"cropType"`
	Severity      string `json:"severity"`
	Description   string `json:"description"`
	ReporterPhone string `json:"reporterPhone"`
}

func (s *Server) handleReportDisease(w http.ResponseWriter, r *http.Request) {
	var req diseaseReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DiseaseName == "" || req.CropType == "" || req.Severity == "" {
		writeDetail(w, http.StatusBadRequest, "diseaseName, cropType and severity are required")
		return
	}

	report, notified, err := s.deps.Alerts.SubmitReport(r.Context(), alerts.ReportInput{
		DiseaseName:   req.DiseaseName,
		CropType:      req.CropType,
		Severity:      req.Severity,
		Description:   req.Description,
		ReporterPhone: req.ReporterPhone,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"message":          "Disease report submitted for " + report.Location,
		"report":           report,
		"notified_farmers": notified,
	})
}

type emailAlertRequest struct {
	Email    string `json:"email"`
	Disease  string `json:"disease"`
	Crop     string `json:"crop"`
	Location string `json:"location"`
}

func (s *Server) handleSendAlert(w http.ResponseWriter, r *http.Request) {
	var req emailAlertRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		writeDetail(w, http.StatusBadRequest, "email is required")
		return
	}

	details, err := s.deps.Alerts.SendDirectAlert(r.Context(), req.Email, req.Disease, req.Crop, req.Location)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Alert sent to " + details.Email,
		"details": details,
	})
}

func (s *Server) handleCommunityAlert(w http.ResponseWriter, r *http.Request) {
	sent := s.deps.Alerts.SendCommunityAlert(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"message":            "Community alert broadcast complete",
		"notifications_sent": sent,
	})
}

func (s *Server) handleRecentAlerts(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	reports, err := s.deps.Alerts.RecentReports(r.Context(), location, 10)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if reports == nil {
		reports = []store.DiseaseReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"alerts":  reports,
	})
}
