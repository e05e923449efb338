/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"net/http"

	"linkauthority-go/internal/models"

	"github.com/gin-gonic/gin"
)

type verifyWebsiteRequest struct {
	Method string `json:"method" binding:"required"`
}

func (s *Server) handleRegisterWebsite(c *gin.Context) {
	var req models.RegisterWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := currentUser(c)
	website, err := s.registry.RegisterWebsite(c.Request.Context(), user.Id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, websiteResponse(website))
}

func (s *Server) handleListWebsites(c *gin.Context) {
	user := currentUser(c)
	websites, err := s.registry.ListOwn(c.Request.Context(), user.Id)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, len(websites))
	for i := range websites {
		out[i] = websiteResponse(&websites[i])
	}
	c.JSON(http.StatusOK, gin.H{"websites": out})
}

func (s *Server) handleUpdateWebsite(c *gin.Context) {
	var req models.UpdateWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := currentUser(c)
	website, err := s.registry.UpdateWebsite(c.Request.Context(), user.Id, c.Param("websiteId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, websiteResponse(website))
}

func (s *Server) handleVerifyWebsite(c *gin.Context) {
	var req verifyWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := currentUser(c)
	website, err := s.registry.VerifyWebsite(c.Request.Context(), user.Id, c.Param("websiteId"), req.Method)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, websiteResponse(website))
}

// websiteResponse shapes a website for its owner. The verification token is
// included because the owner needs it to place the proof.
func websiteResponse(w *models.Website) gin.H {
	return gin.H{
		"id":                  w.Id,
		"url":                 w.URL,
		"domain":              w.Domain,
		"domain_authority":    w.DomainAuthority,
		"category":            w.Category,
		"service_type":        w.ServiceType,
		"location":            w.Location,
		"is_verified":         w.IsVerified,
		"verification_token":  w.VerificationToken,
		"verification_method": w.VerificationMethod,
		"verified_at":         w.VerifiedAt,
		"created_at":          w.CreatedAt,
	}
}
