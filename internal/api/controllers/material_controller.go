package controllers

import (
	"errors"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/curaious/fabricqr/internal/perrors"
	"github.com/curaious/fabricqr/internal/services"
	"github.com/curaious/fabricqr/internal/services/material"
)

func RegisterMaterialRoutes(r *router.Router, svc *services.Services) {
	r.GET("/materials/{qrCodeId}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		qrCodeID, err := pathParam(ctx, "qrCodeId")
		if err != nil {
			writeError(ctx, stdCtx, perrors.NewErrValidation("qrCodeId is required", err))
			return
		}

		m, err := svc.Material.GetByQRCodeID(stdCtx, qrCodeID)
		if err != nil {
			if errors.Is(err, material.ErrMaterialNotFound) {
				writeError(ctx, stdCtx, perrors.NewErrNotFound("material not found", err,
					map[string]interface{}{"qr_code_id": qrCodeID}))
				return
			}
			writeError(ctx, stdCtx, errServer(err))
			return
		}

		writeOK(ctx, stdCtx, m)
	})
}
