package httpapi

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"custodycore/internal/core"
	"custodycore/pkg/domain"
)

func (h *handler) filteredEquipment(c *gin.Context) {
	var filters core.EquipmentFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		badRequest(c, "Invalid filters.")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(core.DefaultPageSize)))
	result, err := h.svc.FilteredEquipment(c.Request.Context(), c.DefaultQuery("location", core.AllLocations), page, pageSize, filters)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "", gin.H{
		"items":      result.Items,
		"page":       result.Page,
		"pageSize":   result.PageSize,
		"totalPages": result.TotalPages,
		"total":      result.Total,
	})
}

func (h *handler) stockEquipment(c *gin.Context) {
	items, err := h.svc.StockEquipment(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "", gin.H{"data": items})
}

func (h *handler) individualHistory(c *gin.Context) {
	entries, err := h.svc.IndividualHistory(c.Request.Context(), c.Param("serial"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "", gin.H{"data": entries})
}

func (h *handler) createEquipment(c *gin.Context) {
	var in core.NewEquipment
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid data.")
		return
	}
	h.outcome(c)(h.svc.Create(c.Request.Context(), in))
}

func (h *handler) assignFromStock(c *gin.Context) {
	var in core.Assignment
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid data.")
		return
	}
	h.outcome(c)(h.svc.AssignFromStock(c.Request.Context(), in))
}

func (h *handler) saveChanges(c *gin.Context) {
	var req core.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid data.")
		return
	}
	h.outcome(c)(h.svc.SaveChanges(c.Request.Context(), c.Param("partition"), c.Param("id"), req))
}

func (h *handler) deleteEquipment(c *gin.Context) {
	h.outcome(c)(h.svc.Delete(c.Request.Context(), c.Param("partition"), c.Param("id")))
}

type resendRequest struct {
	AgentID    string `json:"agentId"`
	AgentEmail string `json:"agentEmail"`
}

func (h *handler) resendCertificate(c *gin.Context) {
	var in resendRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid data.")
		return
	}
	h.outcome(c)(h.svc.ResendCertificate(c.Request.Context(), c.Param("partition"), c.Param("id"), in.AgentID, in.AgentEmail))
}

func (h *handler) uploadCertificate(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "A certificate file is required.")
		return
	}
	file, err := header.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()
	out, err := h.svc.UploadSignedCertificate(c.Request.Context(), c.Param("partition"), c.Param("id"), core.CertificateUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, out.Message, gin.H{"key": out.Key, "url": out.URL})
}

func (h *handler) listCertificates(c *gin.Context) {
	infos, err := h.svc.ListCertificates(c.Request.Context(), c.Param("serial"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "", gin.H{"data": infos})
}

type reportRequest struct {
	FilterType   string   `json:"filterType"`
	FilterValues []string `json:"filterValues"`
}

func (h *handler) advancedReport(c *gin.Context) {
	var in reportRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid data.")
		return
	}
	report, err := h.svc.AdvancedReport(c.Request.Context(), in.FilterType, in.FilterValues)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "", gin.H{"results": report.Results, "stats": report.Stats})
}

func (h *handler) dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "", gin.H{"data": d})
}

func (h *handler) outbox(c *gin.Context) {
	events, err := h.svc.Outbox(c.Request.Context(), domain.OutboxStatus(c.Query("status")))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "", gin.H{"data": events})
}

func (h *handler) configLists(c *gin.Context) {
	lists, err := h.svc.GetLists(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "", gin.H{"data": lists})
}

type configItemRequest struct {
	Value string `json:"value"`
}

func (h *handler) addConfigItem(c *gin.Context) {
	list, err := core.ParseConfigList(c.Param("list"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var in configItemRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid data.")
		return
	}
	h.message(c)(h.svc.AddConfigItem(c.Request.Context(), list, in.Value))
}

func (h *handler) deleteConfigItem(c *gin.Context) {
	list, err := core.ParseConfigList(c.Param("list"))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.message(c)(h.svc.DeleteConfigItem(c.Request.Context(), list, c.Param("value")))
}

type renameRequest struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

func (h *handler) renameLocation(c *gin.Context) {
	var in renameRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid data.")
		return
	}
	h.message(c)(h.svc.RenameLocation(c.Request.Context(), in.OldName, in.NewName))
}

// outcome adapts a mutation result to the response envelope.
func (h *handler) outcome(c *gin.Context) func(core.Outcome, error) {
	return func(out core.Outcome, err error) {
		if err != nil {
			h.fail(c, err)
			return
		}
		var data gin.H
		if out.Record != nil {
			data = gin.H{"record": out.Record}
		}
		ok(c, out.Message, data)
	}
}

func (h *handler) message(c *gin.Context) func(string, error) {
	return func(msg string, err error) {
		if err != nil {
			h.fail(c, err)
			return
		}
		ok(c, msg, nil)
	}
}
