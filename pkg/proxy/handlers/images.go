package handlers

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/images"
	"mercator-hq/poebridge/pkg/proxy"
	"mercator-hq/poebridge/pkg/proxy/types"
)

func (d *Dispatcher) imageGenerations(w http.ResponseWriter, r *http.Request) {
	var req types.ImageGenerationRequest
	if !d.decode(w, r, &req) {
		return
	}
	resp, err := d.deps.Images.Generate(r.Context(), &req)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	proxy.WriteJSON(w, http.StatusOK, resp)
}

func (d *Dispatcher) imageEdits(w http.ResponseWriter, r *http.Request) {
	form, req, image, err := d.imageForm(r)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}

	var mask *images.Upload
	if fh, data, err := proxy.ReadFormFile(form, "mask"); err != nil {
		proxy.WriteError(w, r, err)
		return
	} else if fh != nil {
		mask = &images.Upload{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}
	}

	resp, err := d.deps.Images.Edit(r.Context(), req, image, mask)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	proxy.WriteJSON(w, http.StatusOK, resp)
}

func (d *Dispatcher) imageVariations(w http.ResponseWriter, r *http.Request) {
	_, req, image, err := d.imageForm(r)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	resp, err := d.deps.Images.Variation(r.Context(), req, image)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	proxy.WriteJSON(w, http.StatusOK, resp)
}

// imageForm decodes the multipart body shared by edits and variations.
func (d *Dispatcher) imageForm(r *http.Request) (*multipart.Form, *types.ImageGenerationRequest, images.Upload, error) {
	if mt := proxy.MediaType(r); mt != "multipart/form-data" {
		return nil, nil, images.Upload{}, proxy.UnsupportedContentType(mt)
	}
	form, err := proxy.ParseMultipart(r, d.deps.MaxUploadBytes)
	if err != nil {
		return nil, nil, images.Upload{}, err
	}

	fh, data, err := proxy.ReadFormFile(form, "image")
	if err != nil {
		return nil, nil, images.Upload{}, err
	}
	if fh == nil {
		return nil, nil, images.Upload{}, &apierror.Error{
			Kind:    apierror.KindValidation,
			Message: "An 'image' file is required.",
			Param:   "image",
			Code:    types.CodeMissingField,
		}
	}

	req := &types.ImageGenerationRequest{
		Prompt:         proxy.FormValue(form, "prompt"),
		Model:          proxy.FormValue(form, "model"),
		Quality:        proxy.FormValue(form, "quality"),
		ResponseFormat: proxy.FormValue(form, "response_format"),
		Size:           proxy.FormValue(form, "size"),
		Style:          proxy.FormValue(form, "style"),
		User:           proxy.FormValue(form, "user"),
	}
	if raw := proxy.FormValue(form, "n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, nil, images.Upload{}, apierror.Validation("n", "n must be an integer")
		}
		req.N = &n
	}

	image := images.Upload{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}
	return form, req, image, nil
}
