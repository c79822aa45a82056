// Package config loads the insightmcp YAML configuration.
//
// The file lives at ~/.config/insightmcp/config.yaml unless --config points
// elsewhere. INSIGHTMCP_TENANT_ID and INSIGHTMCP_CLIENT_ID override the
// identity section. Tenant, client, scopes and domain bindings are required
// and never defaulted; timeouts, the authority and the query API base URL are.
//
// Example:
//
//	identity:
//	  tenantId: 11111111-2222-3333-4444-555555555555
//	  clientId: aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee
//	scopes:
//	  primary: ["https://analysis.windows.net/powerbi/api/.default"]
//	  profile: ["User.Read"]
//	  delegatedApi: ["api://reports/.default"]
//	domains:
//	  - name: sales
//	    datasets:
//	      - id: 0f1e...
//	        workspaceId: 9a8b...
//	    requiredTables: [Opportunities]
//	    tools:
//	      - name: get_pipeline_summary
//	        description: Open pipeline by stage
//	        query: |
//	          EVALUATE SUMMARIZECOLUMNS('Opportunities'[Stage], "Amount", SUM('Opportunities'[Amount]))
//
// Validation collects every problem into ValidationErrors rather than
// stopping at the first.
package config
