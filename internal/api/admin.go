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

func (s *Server) handleAdminAdjust(c *gin.Context) {
	var req models.AdminAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tx, err := s.exchange.AdminAdjust(c.Request.Context(), req.UserId, req.Delta, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, transactionResponse(tx))
}

func (s *Server) handleReanalyze(c *gin.Context) {
	result, err := s.registry.Reanalyze(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAdminVerify(c *gin.Context) {
	website, err := s.registry.AdminVerifyWebsite(c.Request.Context(), c.Param("websiteId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, websiteResponse(website))
}

// handleAuditLinks lists every anchor on a registered website's page so an
// admin can spot-check what the site actually publishes.
func (s *Server) handleAuditLinks(c *gin.Context) {
	links, err := s.exchange.AuditLinks(c.Request.Context(), c.Param("websiteId"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, len(links))
	for i, l := range links {
		out[i] = gin.H{
			"href":        l.Href,
			"anchor_text": l.AnchorText,
			"rel":         l.Rel,
			"dofollow":    l.Dofollow,
		}
	}
	c.JSON(http.StatusOK, gin.H{"links": out})
}

// handleReconcile replays the transaction log for one user and compares it
// against the live ledger balance.
func (s *Server) handleReconcile(c *gin.Context) {
	userId := c.Param("userId")
	if err := s.exchange.Reconcile(c.Request.Context(), userId); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userId, "consistent": true})
}
