package mcp

import "github.com/mark3labs/mcp-go/mcp"

// listDocumentsTool defines the list_documents MCP tool.
var listDocumentsTool = mcp.NewTool("list_documents",
	mcp.WithDescription("List stored pages with their ids, titles, templates and section counts."),
)

// listSectionsTool defines the list_sections MCP tool.
var listSectionsTool = mcp.NewTool("list_sections",
	mcp.WithDescription("List the sections of a page with the name the builder shows for each."),
	mcp.WithString("document_id",
		mcp.Required(),
		mcp.Description("Id of the page"),
	),
)

// getSectionTool defines the get_section MCP tool.
var getSectionTool = mcp.NewTool("get_section",
	mcp.WithDescription("Get the HTML, CSS, JS and flags of one section as JSON."),
	mcp.WithString("document_id",
		mcp.Required(),
		mcp.Description("Id of the page"),
	),
	mcp.WithNumber("index",
		mcp.Required(),
		mcp.Description("Zero-based section index"),
	),
)

// updateSectionTool defines the update_section MCP tool.
var updateSectionTool = mcp.NewTool("update_section",
	mcp.WithDescription("Change fields of one section and save the page. Fields that are not given keep their value."),
	mcp.WithString("document_id",
		mcp.Required(),
		mcp.Description("Id of the page"),
	),
	mcp.WithNumber("index",
		mcp.Required(),
		mcp.Description("Zero-based section index"),
	),
	mcp.WithString("content", mcp.Description("Section HTML")),
	mcp.WithString("css", mcp.Description("Section stylesheet")),
	mcp.WithString("js", mcp.Description("Section script")),
	mcp.WithString("js_location",
		mcp.Description("Where the script is emitted"),
		mcp.Enum("footer", "inline"),
	),
	mcp.WithBoolean("format", mcp.Description("Convert markdown content to HTML")),
	mcp.WithBoolean("php_exec", mcp.Description("Run template actions in the content")),
)

// renderPreviewTool defines the render_preview MCP tool.
var renderPreviewTool = mcp.NewTool("render_preview",
	mcp.WithDescription("Render the stored sections of a page to the html, css, jsInline and jsFooter preview payload."),
	mcp.WithString("document_id",
		mcp.Required(),
		mcp.Description("Id of the page"),
	),
)

// applySectionsTool defines the apply_sections MCP tool.
var applySectionsTool = mcp.NewTool("apply_sections",
	mcp.WithDescription("Replace every section of a page. Sections are normalized and the page is switched to a builder template."),
	mcp.WithString("document_id",
		mcp.Required(),
		mcp.Description("Id of the page"),
	),
	mcp.WithString("sections",
		mcp.Required(),
		mcp.Description(`JSON array of {"content","css","js","jsLocation","format","phpExec"} objects`),
	),
	mcp.WithString("page_template",
		mcp.Description("Builder template to switch to"),
		mcp.Enum("page-blocks-builder", "page-blocks-full-builder"),
	),
)
