package analysis

import (
	"strconv"
	"time"

	"docunexus/internal/pipeline/ingest"
	"docunexus/pkg/utils"
)

// Unknown 元数据缺失时的占位值
const Unknown = "Unknown"

// ExtractMetadata 文件基础元数据；PDF 额外读取作者与创建/修改时间
func ExtractMetadata(name string, data []byte) map[string]string {
	md := map[string]string{
		"file_name":         Unknown,
		"file_type":         Unknown,
		"size":              strconv.Itoa(len(data)),
		"author":            Unknown,
		"creation_date":     Unknown,
		"modification_date": Unknown,
	}
	if name != "" {
		md["file_name"] = name
	}
	if ext := utils.Ext(name); ext != "" {
		md["file_type"] = ext
	}
	if md["file_type"] != "pdf" {
		return md
	}

	info, err := ingest.ExtractPDFInfo(data)
	if err != nil {
		return md
	}
	if info.Author != "" {
		md["author"] = info.Author
	}
	if !info.CreationDate.IsZero() {
		md["creation_date"] = info.CreationDate.Format(time.RFC3339)
	}
	if !info.ModificationDate.IsZero() {
		md["modification_date"] = info.ModificationDate.Format(time.RFC3339)
	}
	if info.Pages > 0 {
		md["pages"] = strconv.Itoa(info.Pages)
	}
	if info.Title != "" {
		md["title"] = info.Title
	}
	return md
}
