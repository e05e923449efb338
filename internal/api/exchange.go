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

func (s *Server) handleMarketplace(c *gin.Context) {
	user := currentUser(c)
	listings, err := s.exchange.Marketplace(c.Request.Context(), user.Id,
		c.Query("category"), c.Query("service_type"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"websites": listings})
}

func (s *Server) handleRequestLink(c *gin.Context) {
	var req models.LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := currentUser(c)
	tx, err := s.exchange.RequestLink(c.Request.Context(), user.Id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, transactionResponse(tx))
}

func (s *Server) handleSubmitVerification(c *gin.Context) {
	var req models.SubmitVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := currentUser(c)
	tx, err := s.exchange.SubmitVerification(c.Request.Context(), user.Id,
		c.Param("transactionId"), req.VerificationURL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, transactionResponse(tx))
}

// handleWidgetLinks serves the public embed payload. No auth: the widget
// script on the seller's site calls this directly from the browser.
func (s *Server) handleWidgetLinks(c *gin.Context) {
	links, err := s.exchange.WidgetLinks(c.Request.Context(), c.Param("websiteId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"links": links})
}

func transactionResponse(tx *models.Transaction) gin.H {
	return gin.H{
		"id":               tx.Id,
		"type":             tx.Type,
		"points":           tx.Points,
		"source_url":       tx.SourceURL,
		"target_url":       tx.TargetURL,
		"anchor_text":      tx.AnchorText,
		"status":           tx.Status,
		"verification_url": tx.VerificationURL,
		"website_id":       tx.WebsiteId,
		"expires_at":       tx.ExpiresAt,
		"created_at":       tx.CreatedAt,
	}
}
