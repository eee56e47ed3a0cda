package mcp

import "github.com/mark3labs/mcp-go/mcp"

func declassifySourceTool() mcp.Tool {
	return mcp.NewTool("declassify_source",
		mcp.WithDescription("Convert the React class components of a source file into function components with hooks. "+
			"Components that cannot be converted safely are left in place behind an explanatory comment."),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Full text of the JavaScript or TypeScript file"),
		),
		mcp.WithString("filename",
			mcp.Description("File name used to pick the dialect (.js, .jsx, .ts, .tsx). Defaults to component.tsx"),
		),
	)
}

func declassifyFileTool() mcp.Tool {
	return mcp.NewTool("declassify_file",
		mcp.WithDescription("Convert the React class components of a file on disk and return the result. The file is not modified."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the JavaScript or TypeScript file"),
		),
	)
}
