package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/files"
	"mercator-hq/poebridge/pkg/proxy"
	"mercator-hq/poebridge/pkg/proxy/types"
)

func fileObject(f *files.File) types.FileObject {
	return types.FileObject{
		ID:        f.ID,
		Object:    "file",
		Bytes:     f.Bytes,
		CreatedAt: f.CreatedAt.Unix(),
		Filename:  f.Filename,
		Purpose:   f.Purpose,
		Status:    "processed",
	}
}

func (d *Dispatcher) uploadFile(w http.ResponseWriter, r *http.Request) {
	if mt := proxy.MediaType(r); mt != "multipart/form-data" {
		proxy.WriteError(w, r, proxy.UnsupportedContentType(mt))
		return
	}
	form, err := proxy.ParseMultipart(r, d.deps.MaxUploadBytes)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	fh, data, err := proxy.ReadFormFile(form, "file")
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	if fh == nil {
		proxy.WriteError(w, r, &apierror.Error{
			Kind:    apierror.KindValidation,
			Message: "A 'file' part is required.",
			Param:   "file",
			Code:    types.CodeMissingField,
		})
		return
	}

	f, err := d.deps.Files.Upload(r.Context(), fh.Filename, fh.Header.Get("Content-Type"), proxy.FormValue(form, "purpose"), data)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	proxy.WriteJSON(w, http.StatusOK, fileObject(f))
}

func (d *Dispatcher) listFiles(w http.ResponseWriter, r *http.Request) {
	list, err := d.deps.Files.List(r.Context(), r.URL.Query().Get("purpose"))
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	out := types.FileList{Object: "list", Data: make([]types.FileObject, 0, len(list))}
	for _, f := range list {
		out.Data = append(out.Data, fileObject(f))
	}
	proxy.WriteJSON(w, http.StatusOK, out)
}

func (d *Dispatcher) getFile(w http.ResponseWriter, r *http.Request, id string) {
	f, err := d.deps.Files.Get(r.Context(), id)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	proxy.WriteJSON(w, http.StatusOK, fileObject(f))
}

func (d *Dispatcher) deleteFile(w http.ResponseWriter, r *http.Request, id string) {
	if err := d.deps.Files.Delete(r.Context(), id); err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	proxy.WriteJSON(w, http.StatusOK, types.DeletedObject{ID: id, Object: "file", Deleted: true})
}

func (d *Dispatcher) fileContent(w http.ResponseWriter, r *http.Request, id string) {
	f, err := d.deps.Files.Get(r.Context(), id)
	if err != nil {
		proxy.WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(f.Data)
	}
}
