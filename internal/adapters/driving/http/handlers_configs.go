package http

import (
	"fmt"
	"net/http"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driving"
)

func providerParam(r *http.Request) (domain.ProviderType, error) {
	p := domain.ProviderType(r.PathValue("provider"))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: unknown provider %q", domain.ErrValidation, p)
	}
	return p, nil
}

// handleListConfigs godoc
// @Summary      List provider configurations
// @Description  Summaries only; settings are never returned
// @Tags         Configs
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  domain.ProviderConfigSummary
// @Router       /configs [get]
func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.configService.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, configs)
}

// handleGetConfig godoc
// @Summary      Get provider configuration
// @Description  Setting values are redacted
// @Tags         Configs
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path      string  true  "github, leetcode, notion or gemini"
// @Success      200       {object}  domain.ProviderConfig
// @Failure      404       {object}  ErrorResponse
// @Router       /configs/{provider} [get]
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	cfg, err := s.configService.Get(r.Context(), provider)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleSaveConfig godoc
// @Summary      Create or replace provider configuration (admin only)
// @Tags         Configs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path      string                             true  "Provider"
// @Param        request   body      driving.SaveProviderConfigRequest  true  "Settings"
// @Success      200       {object}  domain.ProviderConfig
// @Failure      403       {object}  ErrorResponse  "Forbidden - admin only"
// @Router       /configs/{provider} [put]
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var req driving.SaveProviderConfigRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	cfg, err := s.configService.Save(r.Context(), provider, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	provider, err := providerParam(r)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if err := s.configService.Delete(r.Context(), provider); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
