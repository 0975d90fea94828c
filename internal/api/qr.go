package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	qr "github.com/skip2/go-qrcode"

	"github.com/ntrung/songclash/internal/errors"
)

// joinQR renders the session join link as a QR code PNG.
func (a *API) joinQR(c *gin.Context) {
	ss, err := a.ss.View(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	url := fmt.Sprintf("%s/%s", a.joinBaseURL, ss.Code)
	png, err := qr.Encode(url, qr.Medium, 256)
	if err != nil {
		respondError(c, errors.Internal(err))
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
